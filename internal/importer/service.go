// Package importer drives link dumps through extraction, merge and the
// enrichment pipelines.
package importer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/extract"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/pipeline"
	"github.com/MrSnakeDoc/linkdump/internal/sources/linkdump"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

// Options configures a Service.
type Options struct {
	Deps    pipeline.Deps
	Workers int
}

// Service owns the three compositions and the raw store they persist to.
type Service struct {
	extractor *extract.Extractor
	raw       store.ReadWriter
	importer  *pipeline.Pipeline
	rebuilder *pipeline.Pipeline
	refetcher *pipeline.Pipeline
	pool      *pipeline.Pool
	logger    logger.Logger
	now       func() time.Time

	running    atomic.Int32
	mu         sync.RWMutex
	lastImport time.Time
}

// New builds the Import, Rebuild and Refetch compositions over opts.Deps.
func New(opts Options) (*Service, error) {
	imp, err := pipeline.NewImport(opts.Deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build import pipeline: %w", err)
	}
	rebuild, err := pipeline.NewRebuild(opts.Deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build rebuild pipeline: %w", err)
	}
	refetch, err := pipeline.NewRefetch(opts.Deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build refetch pipeline: %w", err)
	}

	return &Service{
		extractor: extract.New(opts.Deps.Logger),
		raw:       opts.Deps.Sink,
		importer:  imp,
		rebuilder: rebuild,
		refetcher: refetch,
		pool:      pipeline.NewPool(opts.Workers),
		logger:    opts.Deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Reader exposes the hydrated read side, with bodies and text restored
// from the blob cache.
func (s *Service) Reader() store.Reader {
	return s.refetcher
}

// LastImport returns the completion time of the latest import, zero if
// none ran yet.
func (s *Service) LastImport() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastImport
}

// ───── import ─────

// ImportSource extracts every link of src, merges each with its stored
// record and writes it through the Import composition.
func (s *Service) ImportSource(ctx context.Context, src domain.LinkSource) (*Report, error) {
	doc := s.extractor.Extract(src)
	report := &Report{Links: doc.Links(), Skipped: doc.Skipped}
	if src.Filename != nil {
		report.File = *src.Filename
	}

	now := s.now()
	results, err := s.pool.Run(ctx, report.Links, func(ctx context.Context, draft *domain.Link) (bool, error) {
		stored, err := s.raw.Get(ctx, draft.URL)
		if err != nil {
			return false, fmt.Errorf("failed to load stored link: %w", err)
		}
		return s.importer.Write(ctx, domain.Merge(draft, stored, src, now))
	})
	report.Results = results
	s.logFailures("import", results)

	s.mu.Lock()
	s.lastImport = s.now()
	s.mu.Unlock()

	return report, err
}

// Importing reports whether an ImportFiles call is in progress.
func (s *Service) Importing() bool {
	return s.running.Load() > 0
}

// ImportFiles resolves paths and imports each file in turn. A file that
// cannot be read is reported and the batch continues.
func (s *Service) ImportFiles(ctx context.Context, paths ...string) ([]*Report, error) {
	s.running.Add(1)
	defer s.running.Add(-1)

	loader := linkdump.NewLoader(paths...)
	files, missing, err := loader.Files()
	if err != nil {
		return nil, err
	}
	for _, path := range missing {
		s.logger.Warn("skipping missing path", logger.String("path", path))
	}

	reports := make([]*Report, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		src, err := loader.Load(file)
		if err != nil {
			s.logger.Warn("skipping unreadable file", logger.File(file), logger.Error(err))
			reports = append(reports, &Report{File: file, Err: err})
			continue
		}

		report, err := s.ImportSource(ctx, src)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}

		s.logger.Info("imported link dump",
			logger.File(file),
			logger.Int("links", len(report.Links)),
			logger.Int("failed", report.Failed()),
			logger.Int("skipped", report.Skipped))
	}

	return reports, nil
}

// RetryUnfetched re-runs the Import composition on stored links whose
// fetch never succeeded.
func (s *Service) RetryUnfetched(ctx context.Context) ([]pipeline.Result, error) {
	all, err := s.raw.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	var pending []*domain.Link
	for _, link := range all {
		if link.LastFetched == nil {
			pending = append(pending, link)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	results, err := s.pool.Run(ctx, pending, s.importer.Write)
	s.logFailures("retry", results)
	return results, err
}

// ───── maintenance ─────

// Rebuild clears LastProcessed on every link matching pattern and runs
// extraction again on the cached bodies.
func (s *Service) Rebuild(ctx context.Context, pattern string) ([]pipeline.Result, error) {
	links, err := s.rebuilder.Glob(ctx, orAll(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to look up links: %w", err)
	}
	for _, link := range links {
		link.LastProcessed = nil
	}

	results, err := s.pool.Run(ctx, links, s.rebuilder.Write)
	s.logFailures("rebuild", results)
	return results, err
}

// Refetch downloads links matching pattern again. Links whose body is
// already cached are skipped unless all is set.
func (s *Service) Refetch(ctx context.Context, pattern string, all bool) ([]Outcome, error) {
	links, err := s.refetcher.Glob(ctx, orAll(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to look up links: %w", err)
	}

	outcomes := make([]Outcome, len(links))
	var pending []*domain.Link
	index := make(map[string]int, len(links))
	for i, link := range links {
		outcomes[i] = Outcome{URL: link.URL, Status: StatusSkipped}
		if link.Src != nil && !all {
			continue
		}
		link.LastFetched = nil
		link.LastProcessed = nil
		index[link.URL] = i
		pending = append(pending, link)
	}

	results, err := s.pool.Run(ctx, pending, s.refetcher.Write)
	for _, r := range results {
		i, ok := index[r.URL]
		if !ok {
			continue
		}
		outcomes[i].Err = r.Err
		outcomes[i].Status = StatusDone
		if r.Err != nil {
			outcomes[i].Status = StatusFailed
		}
	}
	s.logFailures("refetch", results)
	return outcomes, err
}

func (s *Service) logFailures(op string, results []pipeline.Result) {
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("link failed",
				logger.String("op", op),
				logger.URL(r.URL),
				logger.Error(r.Err))
		}
	}
}

func orAll(pattern string) string {
	if pattern == "" {
		return "*"
	}
	return pattern
}
