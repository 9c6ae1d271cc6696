package mw

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/utils"
)

// EnforceHost allows requests only if the Host header, without its port,
// matches one of the allowed patterns. Patterns are wildcards where "*"
// stays within one label, so "*.example.com" matches "a.example.com" but
// not "example.com" or "a.b.example.com".
// If allowedHosts is empty, it acts as a passthrough.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := compileHosts(allowedHosts, log)
	if len(patterns) == 0 {
		log.Debug("EnforceHost: no host patterns, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("EnforceHost: initialized", logger.Strings("hosts", allowedHosts))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := strings.ToLower(utils.HostOnly(r.Host))
			for _, p := range patterns {
				if p.Match(host) {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Debug("EnforceHost: rejected", logger.String("host", r.Host))
			w.WriteHeader(http.StatusForbidden)
		})
	}
}

func compileHosts(hosts []string, log logger.Logger) []glob.Glob {
	patterns := make([]glob.Glob, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(utils.HostOnly(strings.TrimSpace(h)))
		if h == "" {
			continue
		}
		g, err := glob.Compile(h, '.')
		if err != nil {
			log.Warn("EnforceHost: ignoring invalid host pattern",
				logger.String("pattern", h), logger.Error(err))
			continue
		}
		patterns = append(patterns, g)
	}
	return patterns
}
