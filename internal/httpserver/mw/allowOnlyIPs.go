package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/utils"
)

// AllowOnlyCIDRS admits only callers inside the given addresses or
// prefixes. An empty list disables filtering. A list whose entries are all
// invalid rejects everyone rather than opening the route.
// trustProxy should be true when running behind a trusted reverse proxy/tunnel (e.g., cloudflared).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	set, rejected := utils.ParseAddrSet(allowed)
	if len(rejected) > 0 {
		log.Warn("ignoring invalid allowed CIDR entries", logger.Strings("entries", rejected))
	}
	if len(set) == 0 && len(rejected) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := utils.ClientAddr(r, trustProxy)
			if !ok || !set.Contains(addr) {
				log.Debug("client not in allowed CIDRs",
					logger.String("client", addr.String()),
					logger.Bool("trust_proxy", trustProxy),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
