package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

const pingTimeout = 2 * time.Second

type readyzResponse struct {
	Ready bool              `json:"ready"`
	Error map[string]string `json:"error,omitempty"`
}

// Readyz reports ready only when both the store and the blob cache answer.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		resp := readyzResponse{Ready: true}
		check := func(name string, p deps.Pinger) {
			if p == nil {
				return
			}
			if err := ping(r.Context(), p); err != nil {
				d.Logger.Warn("readiness probe failed", logger.String("component", name), logger.Error(err))
				if resp.Error == nil {
					resp.Error = make(map[string]string)
				}
				resp.Ready = false
				resp.Error[name] = err.Error()
			}
		}
		if d.Store != nil {
			check("store", d.Store)
		}
		check("cache", d.Cache)

		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func ping(ctx context.Context, p deps.Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}
