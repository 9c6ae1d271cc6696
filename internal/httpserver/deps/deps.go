package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

// Pinger is anything readyz can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ImportClock reports when the last import finished and whether one is
// running now.
type ImportClock interface {
	LastImport() time.Time
	Importing() bool
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time // for testing, defaults to time.Now
	AllowedHosts  []string         // Host headers allowed to access the server
	AllowedCIDRS  []string         // IPs allowed to access readyz, status and reload
	TrustProxy    bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Store         store.Store      // link store
	Cache         Pinger           // blob cache, nil when disabled
	CacheBackend  string           // "fs" or "redis"
	Imports       ImportClock      // import progress
	WatchPaths    []string         // paths re-imported on reload
	ReloadTrigger chan struct{}    // Channel to trigger a manual import
}
