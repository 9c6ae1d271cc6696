// Package redis opens the Redis connection behind the blob cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

// Options describes the blob cache server and how long to wait for it.
type Options struct {
	Addr         string
	User         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// Wait bounds the whole readiness check. Backoff doubles after every
	// failed ping up to MaxBackoff.
	Wait        time.Duration
	Backoff     time.Duration
	MaxBackoff  time.Duration
	PingTimeout time.Duration
	// WarnAfter failed pings are logged as warnings, later ones as errors.
	WarnAfter int
}

func (o Options) withDefaults() Options {
	if o.Wait == 0 {
		o.Wait = 30 * time.Second
	}
	if o.Backoff == 0 {
		o.Backoff = 2 * time.Second
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 10 * time.Second
	}
	if o.PingTimeout == 0 {
		o.PingTimeout = 2 * time.Second
	}
	if o.WarnAfter == 0 {
		o.WarnAfter = 3
	}
	return o
}

func (o Options) validate() error {
	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("redis address is required"))
	}
	for name, d := range map[string]time.Duration{
		"wait":         o.Wait,
		"backoff":      o.Backoff,
		"max backoff":  o.MaxBackoff,
		"ping timeout": o.PingTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", name, d))
		}
	}
	return errors.Join(errs...)
}

// evictingPolicies drop keys under memory pressure, which loses cached
// page bodies for good.
var evictingPolicies = map[string]bool{
	"allkeys-lru":    true,
	"allkeys-lfu":    true,
	"allkeys-random": true,
}

// Open connects to the blob cache server and blocks until it answers PING
// or opts.Wait elapses. Zero wait settings take defaults.
func Open(ctx context.Context, opts Options, log logger.Logger) (*redis.Client, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid blob cache options: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	log.Info("waiting for redis blob cache",
		logger.String("addr", opts.Addr),
		logger.Duration("wait", opts.Wait))

	attempts, err := waitReady(ctx, client, opts, log)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("blob cache at %s not ready after %d attempts: %w", opts.Addr, attempts, err)
	}

	fields := []logger.Field{logger.String("addr", opts.Addr), logger.Int("db", opts.DB)}
	if attempts > 1 {
		log.Warn("redis blob cache ready after retry", append(fields, logger.Int("attempts", attempts))...)
	} else {
		log.Info("redis blob cache ready", fields...)
	}

	checkEviction(ctx, client, opts.PingTimeout, log)
	return client, nil
}

// waitReady pings until success, backing off exponentially.
func waitReady(parent context.Context, client *redis.Client, opts Options, log logger.Logger) (int, error) {
	ctx, cancel := context.WithTimeout(parent, opts.Wait)
	defer cancel()

	backoff := opts.Backoff
	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			return attempt, nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}

		fields := []logger.Field{
			logger.String("addr", opts.Addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", backoff),
			logger.Error(err),
		}
		if attempt <= opts.WarnAfter {
			log.Warn("blob cache not ready, retrying", fields...)
		} else {
			log.Error("blob cache still unavailable", fields...)
		}

		backoff = min(backoff*2, opts.MaxBackoff)
	}
}

// checkEviction warns when the server may evict cached blobs. Servers that
// refuse CONFIG are left alone.
func checkEviction(ctx context.Context, client *redis.Client, timeout time.Duration, log logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := client.ConfigGet(ctx, "maxmemory-policy").Result()
	if err != nil {
		log.Debug("cannot read redis eviction policy", logger.Error(err))
		return
	}
	if policy := res["maxmemory-policy"]; evictingPolicies[policy] {
		log.Warn("redis may evict cached page bodies",
			logger.String("maxmemory_policy", policy))
	}
}
