package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/MrSnakeDoc/linkdump/internal/config"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/store/memory"
	"github.com/MrSnakeDoc/linkdump/internal/store/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("LINKDUMP_CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("LINKDUMP_DB", filepath.Join(t.TempDir(), "links.db"))
	t.Setenv("LINKDUMP_CACHE_BACKEND", "fs")
	return config.Load()
}

func TestNewWiresSQLiteAndFSCache(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, logger.New("error", false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if _, ok := a.Store().(*sqlite.Store); !ok {
		t.Errorf("store = %T, want *sqlite.Store", a.Store())
	}
	if a.Importer() == nil {
		t.Fatal("importer not built")
	}
	if _, err := os.Stat(cfg.CacheDir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
	if err := a.Store().Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewMemoryStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB = config.MemoryDB

	a, err := New(context.Background(), cfg, logger.New("error", false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if _, ok := a.Store().(*memory.Store); !ok {
		t.Errorf("store = %T, want *memory.Store", a.Store())
	}
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.DB = config.MemoryDB
	cfg.CacheBackend = config.CacheRedis
	cfg.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, logger.New("error", false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.redisClient == nil {
		t.Fatal("redis client not connected")
	}
	if err := a.cache.Ping(context.Background()); err != nil {
		t.Errorf("cache Ping() error = %v", err)
	}
}
