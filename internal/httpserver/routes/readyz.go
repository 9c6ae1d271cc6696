package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/handlers"
)

func init() {
	Register(Public, func(r chi.Router, d deps.Deps) {
		r.Get("/healthz", handlers.Healthz(d))
	})
	Register(Restricted, func(r chi.Router, d deps.Deps) {
		r.Get("/readyz", handlers.Readyz(d))
	})
}
