package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/mw"
)

// Access selects the guards a route group sits behind.
type Access int

const (
	// Public routes answer anyone. Only liveness belongs here.
	Public Access = iota
	// Restricted routes are limited to the allowed CIDRs.
	Restricted
	// Private routes expose link data or start imports. They also need an
	// allowed Host header.
	Private
)

type Registrar func(r chi.Router, d deps.Deps)

type entry struct {
	access Access
	reg    Registrar
}

var registry []entry

// Register adds a route group behind the guards of access.
func Register(access Access, reg Registrar) {
	registry = append(registry, entry{access: access, reg: reg})
}

// RegisterAll mounts every group. Called once from server.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	cidrs := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	hosts := mw.EnforceHost(d.AllowedHosts, d.Logger)

	chains := map[Access][]func(http.Handler) http.Handler{
		Restricted: {cidrs},
		Private:    {cidrs, hosts},
	}

	for _, e := range registry {
		if mws := chains[e.access]; len(mws) > 0 {
			e.reg(r.With(mws...), d)
			continue
		}
		e.reg(r, d)
	}
}
