package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/importer"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

// FileImporter imports link dumps from disk.
type FileImporter interface {
	ImportFiles(ctx context.Context, paths ...string) ([]*importer.Report, error)
}

// ImportReloader periodically re-imports the watched link dumps
type ImportReloader struct {
	importer      FileImporter
	paths         []string
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewImportReloader creates a new import reloader
func NewImportReloader(
	imp FileImporter,
	paths []string,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *ImportReloader {
	return &ImportReloader{
		importer:      imp,
		paths:         paths,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports in the background right away, then on every tick or
// manual trigger. It returns without waiting for the first import.
func (ir *ImportReloader) Start(ctx context.Context) error {
	if len(ir.paths) == 0 {
		return errors.New("no paths to watch")
	}

	ticker := time.NewTicker(ir.interval)
	go func() {
		defer ticker.Stop()
		if err := ir.Reload(ctx); err != nil {
			ir.logger.Error("initial import failed",
				logger.Error(err))
		}
		for {
			select {
			case <-ticker.C:
				if err := ir.Reload(ctx); err != nil {
					ir.logger.Error("failed to import link dumps",
						logger.Error(err))
				}
			case <-ir.manualTrigger:
				ir.logger.Info("manual import triggered")
				if err := ir.Reload(ctx); err != nil {
					ir.logger.Error("failed to import link dumps",
						logger.Error(err))
				}
			case <-ir.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (ir *ImportReloader) Stop() {
	close(ir.stopCh)
}

// Reload imports every watched path once
func (ir *ImportReloader) Reload(ctx context.Context) error {
	ir.logger.Info("importing watched link dumps",
		logger.Strings("paths", ir.paths))

	reports, err := ir.importer.ImportFiles(ctx, ir.paths...)
	if err != nil {
		return fmt.Errorf("failed to import link dumps: %w", err)
	}

	links, failed, unreadable := 0, 0, 0
	for _, r := range reports {
		if r.Err != nil {
			unreadable++
			continue
		}
		links += len(r.Links)
		failed += r.Failed()
	}

	ir.logger.Info("import completed",
		logger.Int("files", len(reports)),
		logger.Int("unreadable", unreadable),
		logger.Int("links", links),
		logger.Int("failed", failed))

	return nil
}
