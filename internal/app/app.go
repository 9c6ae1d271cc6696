// Package app wires configuration into the store, blob cache, fetch client
// and import service shared by every command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdump/internal/blobcache"
	"github.com/MrSnakeDoc/linkdump/internal/config"
	"github.com/MrSnakeDoc/linkdump/internal/fetch"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/importer"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/pipeline"
	"github.com/MrSnakeDoc/linkdump/internal/redis"
	"github.com/MrSnakeDoc/linkdump/internal/scheduler"
	"github.com/MrSnakeDoc/linkdump/internal/store"
	"github.com/MrSnakeDoc/linkdump/internal/store/memory"
	"github.com/MrSnakeDoc/linkdump/internal/store/sqlite"
	"github.com/MrSnakeDoc/linkdump/internal/utils"
	"github.com/MrSnakeDoc/linkdump/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	store       store.Store
	cache       blobcache.Cache
	redisClient *goredis.Client
	importer    *importer.Service
}

// New opens the store and the blob cache and builds the import service.
// Close releases both.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: log}

	st, err := openStore(ctx, cfg, log.Named("store"))
	if err != nil {
		return nil, err
	}
	a.store = st

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	client := fetch.New(fetch.Config{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.RequestTimeout,
		MaxRedirects: cfg.MaxRedirects,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	svc, err := importer.New(importer.Options{
		Deps: pipeline.Deps{
			Fetcher:    client,
			Cache:      a.cache,
			Sink:       st,
			PDFTimeout: cfg.PDFTimeout,
			Logger:     log.Named("importer"),
		},
		Workers: cfg.Workers,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.importer = svc

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	if cfg.DB == config.MemoryDB {
		log.Warn("using in-memory store, nothing will be persisted")
		return memory.New(), nil
	}

	st, err := sqlite.Open(ctx, cfg.DB, sqlite.DefaultMigrations(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.DB, err)
	}
	return st, nil
}

func (a *App) openCache(ctx context.Context) error {
	switch a.cfg.CacheBackend {
	case config.CacheRedis:
		client, err := redis.Open(ctx, redis.Options{
			Addr:         a.cfg.RedisAddr,
			User:         a.cfg.RedisUser,
			Password:     a.cfg.RedisPassword,
			DB:           a.cfg.RedisDB,
			DialTimeout:  a.cfg.RedisDT,
			ReadTimeout:  a.cfg.RedisRT,
			WriteTimeout: a.cfg.RedisWT,
			PoolSize:     a.cfg.RedisPoolSize,
			Wait:         a.cfg.RedisConnectTimeout,
			Backoff:      a.cfg.RedisRetryInterval,
			MaxBackoff:   a.cfg.RedisMaxWait,
			PingTimeout:  a.cfg.RedisPingTimeout,
			WarnAfter:    a.cfg.RedisWarnThreshold,
		}, a.logger.Named("blobcache"))
		if err != nil {
			return fmt.Errorf("failed to connect to redis blob cache: %w", err)
		}
		a.redisClient = client
		a.cache = blobcache.NewRedis(client)
	default:
		fs, err := blobcache.NewFS(a.cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to open blob cache: %w", err)
		}
		a.cache = fs
	}

	a.logger.Debug("blob cache ready", logger.String("backend", a.cfg.CacheBackend))
	return nil
}

func (a *App) Store() store.Store          { return a.store }
func (a *App) Importer() *importer.Service { return a.importer }
func (a *App) Logger() logger.Logger       { return a.logger }

// Close releases the store and the redis connection, if any.
func (a *App) Close() {
	if a.store != nil {
		utils.Close(a.store)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		}
	}
}

// Serve runs the periodic importer, the fetch retrier and the HTTP server
// until SIGINT or SIGTERM.
func (a *App) Serve(parent context.Context) error {
	a.logger.Infof("🚀 Starting linkdump v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("linkdump %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reloadTrigger chan struct{}
	var reloader *scheduler.ImportReloader
	if len(a.cfg.WatchPaths) > 0 {
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewImportReloader(a.importer, a.cfg.WatchPaths, a.logger.Named("import-reloader"), a.cfg.ImportInterval, reloadTrigger)
		if err := reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start import reloader: %w", err)
		}
		a.logger.Info("import reloader started",
			logger.Duration("interval", a.cfg.ImportInterval))
	} else {
		a.logger.Info("no watched paths configured, periodic import disabled")
	}

	retrier := scheduler.NewFetchRetrier(a.importer, a.logger.Named("fetch-retrier"), a.cfg.RetryInterval)
	if err := retrier.Start(ctx); err != nil {
		return fmt.Errorf("failed to start fetch retrier: %w", err)
	}
	a.logger.Info("fetch retrier started",
		logger.Duration("interval", a.cfg.RetryInterval))

	d := deps.Deps{
		Logger:        a.logger.Named("http"),
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  a.cfg.AllowedHosts,
		AllowedCIDRS:  a.cfg.AllowedCIDRS,
		TrustProxy:    a.cfg.TrustProxy,
		Store:         a.store,
		Cache:         a.cache,
		CacheBackend:  a.cfg.CacheBackend,
		Imports:       a.importer,
		WatchPaths:    a.cfg.WatchPaths,
		ReloadTrigger: reloadTrigger,
	}
	server := httpserver.New(a.cfg.ListenPort, d.Logger, d)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if reloader != nil {
		reloader.Stop()
	}
	retrier.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if runErr == nil {
		a.logger.Info("✅ linkdump stopped cleanly")
	}
	return runErr
}
