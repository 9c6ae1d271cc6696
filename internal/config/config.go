package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrSnakeDoc/linkdump/internal/version"
)

const (
	// MemoryDB selects the in-memory store instead of SQLite.
	MemoryDB = "memory"

	CacheFS    = "fs"
	CacheRedis = "redis"
)

type Config struct {
	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	DB           string // sqlite path or DSN, or "memory"
	CacheBackend string // "fs" | "redis"
	CacheDir     string // root of the fs blob cache

	// Fetching
	UserAgent      string
	RequestTimeout time.Duration // ex: 15s
	MaxRedirects   int
	MaxBodyBytes   int64
	Workers        int           // links enriched concurrently per document
	PDFTimeout     time.Duration // hard deadline for one PDF extraction

	// Serve mode
	WatchPaths      []string      // files and directories re-imported periodically
	ImportInterval  time.Duration // ex: 1h
	RetryInterval   time.Duration // ex: 6h
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	AllowedHosts    []string      // optional, restrict access to specific Host headers
	AllowedCIDRS    []string      // optional, restrict /reload to specific IPs
	TrustProxy      bool          // true => trust X-Forwarded-For headers

	// Redis blob cache
	RedisAddr           string // ex: "localhost:6379"
	RedisUser           string // optional
	RedisPassword       string // optional
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisWarnThreshold  int           // warn after this many attempts
}

// LoadDotenv loads ENV_FILE, .env.local and .env in that order. Variables
// already set in the environment win, and missing files are ignored.
func LoadDotenv() error {
	files := []string{".env.local", ".env"}
	if f := os.Getenv("ENV_FILE"); f != "" {
		files = append([]string{f}, files...)
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func Load() *Config {
	cfg := &Config{
		// Logging
		LogLevel:  getenv("LINKDUMP_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKDUMP_PRETTY_LOG", true),

		// Storage
		DB:           getenv("LINKDUMP_DB", "linkdump.db"),
		CacheBackend: strings.ToLower(getenv("LINKDUMP_CACHE_BACKEND", CacheFS)),
		CacheDir:     getenv("LINKDUMP_CACHE_DIR", defaultCacheDir()),

		// Fetching
		UserAgent:      getenv("LINKDUMP_USER_AGENT", "linkdump/"+version.Version),
		RequestTimeout: mustDuration("LINKDUMP_REQUEST_TIMEOUT", 15*time.Second),
		MaxRedirects:   getenvInt("LINKDUMP_MAX_REDIRECTS", 10),
		MaxBodyBytes:   int64(getenvInt("LINKDUMP_MAX_BODY_BYTES", 20<<20)),
		Workers:        getenvInt("LINKDUMP_WORKERS", 8),
		PDFTimeout:     mustDuration("LINKDUMP_PDF_TIMEOUT", 30*time.Second),

		// Serve mode
		WatchPaths:      splitAndTrim(getenv("LINKDUMP_WATCH_PATHS", "")),
		ImportInterval:  mustDuration("LINKDUMP_IMPORT_INTERVAL", time.Hour),
		RetryInterval:   mustDuration("LINKDUMP_RETRY_INTERVAL", 6*time.Hour),
		ListenPort:      getenv("LINKDUMP_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKDUMP_SHUTDOWN_TIMEOUT", 5*time.Second),
		AllowedHosts:    splitAndTrim(getenv("LINKDUMP_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    parseAllowedIPs(getenv("LINKDUMP_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("LINKDUMP_TRUST_PROXY", false),

		// Redis settings
		RedisAddr:           getenv("LINKDUMP_REDIS_ADDR", ""),
		RedisUser:           getenv("LINKDUMP_REDIS_USERNAME", ""),
		RedisPassword:       getenv("LINKDUMP_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("LINKDUMP_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
	}

	switch cfg.CacheBackend {
	case CacheFS:
	case CacheRedis:
		if cfg.RedisAddr == "" {
			panic("❌ FATAL: LINKDUMP_REDIS_ADDR is required when LINKDUMP_CACHE_BACKEND=redis")
		}
	default:
		panic(fmt.Sprintf("❌ FATAL: Unknown LINKDUMP_CACHE_BACKEND %q (want fs or redis)", cfg.CacheBackend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "linkdump", "cache")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "linkdump")
	}
	return filepath.Join(os.TempDir(), "linkdump-cache")
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
