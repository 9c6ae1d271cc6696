package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

type componentStatus struct {
	OK         bool     `json:"ok"`
	Links      *int     `json:"links,omitempty"`
	Unfetched  *int     `json:"unfetched,omitempty"`
	LastImport string   `json:"last_import,omitempty"`
	Importing  bool     `json:"importing,omitempty"`
	Watching   []string `json:"watching,omitempty"`
	Backend    string   `json:"backend,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type statusResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Status summarizes the store, the blob cache and the import loop.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"store":  storeStatus(r, d),
			"cache":  cacheStatus(r, d),
			"import": importStatus(d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(statusResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func storeStatus(r *http.Request, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}

	total, err := d.Store.Count(r.Context(), store.ListParams{})
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}

	links, err := d.Store.Values(r.Context())
	if err != nil {
		return componentStatus{OK: false, Links: &total, Error: err.Error()}
	}
	unfetched := 0
	for _, l := range links {
		if l.LastFetched == nil {
			unfetched++
		}
	}

	return componentStatus{OK: true, Links: &total, Unfetched: &unfetched}
}

func cacheStatus(r *http.Request, d deps.Deps) componentStatus {
	if d.Cache == nil {
		return componentStatus{OK: true, Backend: "none"}
	}
	if err := ping(r.Context(), d.Cache); err != nil {
		return componentStatus{OK: false, Backend: d.CacheBackend, Error: err.Error()}
	}
	return componentStatus{OK: true, Backend: d.CacheBackend}
}

func importStatus(d deps.Deps) componentStatus {
	last, running := "never", false
	if d.Imports != nil {
		if t := d.Imports.LastImport(); !t.IsZero() {
			last = t.Format("2006-01-02 15:04:05")
		}
		running = d.Imports.Importing()
	}
	return componentStatus{
		OK:         len(d.WatchPaths) == 0 || last != "never" || running,
		LastImport: last,
		Importing:  running,
		Watching:   d.WatchPaths,
	}
}

func determineMode(components map[string]componentStatus) string {
	if !components["store"].OK {
		return "critical"
	}
	if !components["cache"].OK || !components["import"].OK {
		return "degraded"
	}
	return "ok"
}
