package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/handlers"
)

func init() { Register(Private, registerLinks) }

func registerLinks(r chi.Router, d deps.Deps) {
	r.Get("/links", handlers.Links(d))
	r.Get("/status", handlers.Status(d))
}
