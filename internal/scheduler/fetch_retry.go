package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/pipeline"
)

const (
	// DefaultRetryInterval is how often links without a successful fetch
	// are tried again
	DefaultRetryInterval = 6 * time.Hour
)

// UnfetchedRetrier re-runs enrichment on links whose fetch never succeeded.
type UnfetchedRetrier interface {
	RetryUnfetched(ctx context.Context) ([]pipeline.Result, error)
}

// FetchRetrier sweeps stored links whose fetch gate is still open
type FetchRetrier struct {
	retrier  UnfetchedRetrier
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewFetchRetrier creates a new fetch retrier
func NewFetchRetrier(
	retrier UnfetchedRetrier,
	log logger.Logger,
	interval time.Duration,
) *FetchRetrier {
	if interval == 0 {
		interval = DefaultRetryInterval
	}

	return &FetchRetrier{
		retrier:  retrier,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. The first sweep waits one interval so
// it does not race the initial import.
func (fr *FetchRetrier) Start(ctx context.Context) error {
	ticker := time.NewTicker(fr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := fr.Sweep(ctx); err != nil {
					fr.logger.Error("fetch retry failed",
						logger.Error(err))
				}
			case <-fr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the retrier
func (fr *FetchRetrier) Stop() {
	close(fr.stopCh)
}

// Sweep retries every unfetched link once and returns how many now have
// their fetch gate set.
func (fr *FetchRetrier) Sweep(ctx context.Context) (int, error) {
	fr.logger.Info("retrying links without a successful fetch")

	results, err := fr.retrier.RetryUnfetched(ctx)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	if len(results) > 0 {
		fr.logger.Info("fetch retry completed",
			logger.Int("retried", len(results)),
			logger.Int("failed", failed))
	} else {
		fr.logger.Debug("no links to retry")
	}

	return len(results) - failed, nil
}
