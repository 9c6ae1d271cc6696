// Package pipeline enriches links on their way to the store.
//
// A Pipeline is an ordered list of stages followed by a sink store. Writing
// a link runs every stage on it in order, then upserts it into the sink.
// Each stage is gated by a timestamp on the link so running it twice is a
// no-op.
package pipeline

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

// Kind orders stages: fetching must precede extraction, which must precede
// caching.
type Kind int

const (
	KindFetch Kind = iota
	KindExtract
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindExtract:
		return "extract"
	case KindCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Stage mutates a link before it is persisted.
type Stage interface {
	Name() string
	Kind() Kind
	Process(ctx context.Context, link *domain.Link) error
}

// Hydrator is implemented by stages that move data out of the link on
// write and need to restore it on read.
type Hydrator interface {
	Hydrate(ctx context.Context, link *domain.Link) error
}

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}
