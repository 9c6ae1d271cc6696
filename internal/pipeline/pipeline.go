package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

var (
	// ErrInvalidOrder is returned when stages are not ordered fetch, then
	// extract, then cache.
	ErrInvalidOrder = errors.New("invalid stage order")
	// ErrDuplicateStage is returned when the same stage is added twice.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrNoSink is returned when a pipeline has nowhere to persist links.
	ErrNoSink = errors.New("pipeline has no sink")
)

var _ store.ReadWriter = (*Pipeline)(nil)

// Pipeline runs its stages on every written link and then persists it in
// the sink. Reads go to the sink and are hydrated by every stage that
// implements Hydrator.
type Pipeline struct {
	name   string
	stages []Stage
	sink   store.ReadWriter
	logger logger.Logger
}

// Name identifies the composition in logs.
func (p *Pipeline) Name() string { return p.name }

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Write enriches link in place and upserts it.
func (p *Pipeline) Write(ctx context.Context, link *domain.Link) (bool, error) {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := stage.Process(ctx, link); err != nil {
			return false, fmt.Errorf("%s stage failed for %s: %w", stage.Name(), link.URL, err)
		}
	}
	return p.sink.Write(ctx, link)
}

func (p *Pipeline) Get(ctx context.Context, url string) (*domain.Link, error) {
	link, err := p.sink.Get(ctx, url)
	if err != nil || link == nil {
		return link, err
	}
	if err := p.hydrate(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// Values returns every stored link. Links that fail to hydrate are
// skipped and logged.
func (p *Pipeline) Values(ctx context.Context) ([]*domain.Link, error) {
	links, err := p.sink.Values(ctx)
	if err != nil {
		return nil, err
	}
	return p.hydrateAll(ctx, links), nil
}

func (p *Pipeline) Glob(ctx context.Context, pattern string) ([]*domain.Link, error) {
	links, err := p.sink.Glob(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return p.hydrateAll(ctx, links), nil
}

func (p *Pipeline) hydrate(ctx context.Context, link *domain.Link) error {
	for _, stage := range p.stages {
		h, ok := stage.(Hydrator)
		if !ok {
			continue
		}
		if err := h.Hydrate(ctx, link); err != nil {
			p.logger.Debug("hydration failed", logger.Stage(stage.Name()), logger.URL(link.URL))
			return fmt.Errorf("%s stage failed to hydrate %s: %w", stage.Name(), link.URL, err)
		}
	}
	return nil
}

func (p *Pipeline) hydrateAll(ctx context.Context, links []*domain.Link) []*domain.Link {
	out := links[:0]
	for _, link := range links {
		if err := p.hydrate(ctx, link); err != nil {
			p.logger.Warn("skipping link", logger.URL(link.URL), logger.Error(err))
			continue
		}
		out = append(out, link)
	}
	return out
}

// ───── builder ─────

// Builder assembles a Pipeline and validates its stage order.
type Builder struct {
	name   string
	stages []Stage
	sink   store.ReadWriter
	logger logger.Logger
}

func NewBuilder(name string, sink store.ReadWriter, log logger.Logger) *Builder {
	return &Builder{name: name, sink: sink, logger: log}
}

// Then appends stages. Nil stages are ignored so optional stages can be
// passed unconditionally.
func (b *Builder) Then(stages ...Stage) *Builder {
	for _, s := range stages {
		if s == nil || isNilStage(s) {
			continue
		}
		b.stages = append(b.stages, s)
	}
	return b
}

func (b *Builder) Build() (*Pipeline, error) {
	if b.sink == nil {
		return nil, ErrNoSink
	}

	seen := make(map[string]struct{}, len(b.stages))
	last := KindFetch
	for _, s := range b.stages {
		if _, dup := seen[s.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, s.Name())
		}
		seen[s.Name()] = struct{}{}

		if s.Kind() < last {
			return nil, fmt.Errorf("%w: %s stage %q after a %s stage", ErrInvalidOrder, s.Kind(), s.Name(), last)
		}
		last = s.Kind()
	}

	p := &Pipeline{
		name:   b.name,
		stages: append([]Stage(nil), b.stages...),
		sink:   b.sink,
		logger: b.logger,
	}
	p.logger.Debug("pipeline built",
		logger.String("pipeline", p.name),
		logger.String("stages", strings.Join(p.Stages(), " -> ")))
	return p, nil
}

// isNilStage catches typed nil pointers stored in the interface.
func isNilStage(s Stage) bool {
	switch v := s.(type) {
	case *FetchStage:
		return v == nil
	case *HTMLStage:
		return v == nil
	case *PDFStage:
		return v == nil
	case *TextStage:
		return v == nil
	case *ExternalStage:
		return v == nil
	}
	return false
}
