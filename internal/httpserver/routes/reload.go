package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/mw"
)

func init() { Register(Private, registerReload) }

// reloadCooldown is the minimum gap between two imports started over HTTP.
const reloadCooldown = 10 * time.Second

func registerReload(r chi.Router, d deps.Deps) {
	cooldown := mw.Cooldown(mw.CooldownConfig{
		Interval: reloadCooldown,
		Busy: func() bool {
			return d.Imports != nil && d.Imports.Importing()
		},
		Now: d.TimeNow,
	}, d.Logger)
	r.With(cooldown).Post("/reload", handlers.Reload(d))
}
