package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

// CooldownConfig guards an endpoint that starts the import job.
type CooldownConfig struct {
	// Interval is the minimum time between two accepted requests.
	Interval time.Duration
	// Busy reports that an import is running. Requests are refused meanwhile.
	Busy func() bool
	Now  func() time.Time
}

// Cooldown answers 429 with Retry-After while cfg.Busy reports true, and
// until cfg.Interval has passed since the last request the handler
// accepted with a 2xx status. All clients share one window because they
// all start the same job.
func Cooldown(cfg CooldownConfig, log logger.Logger) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var (
		mu       sync.Mutex
		accepted time.Time
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()

			now := cfg.Now()
			if cfg.Busy != nil && cfg.Busy() {
				refuse(w, cfg.Interval, "⏳ Import in progress, retry later\n", log)
				return
			}
			if !accepted.IsZero() {
				if wait := accepted.Add(cfg.Interval).Sub(now); wait > 0 {
					refuse(w, wait, "⏳ Import triggered recently, retry later\n", log)
					return
				}
			}

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status == 0 || (sw.status >= 200 && sw.status < 300) {
				accepted = now
			}
		})
	}
}

func refuse(w http.ResponseWriter, wait time.Duration, msg string, log logger.Logger) {
	secs := max(int(math.Ceil(wait.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.WriteHeader(http.StatusTooManyRequests)
	if _, err := w.Write([]byte(msg)); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}
