// Package store defines the persistence boundary for links.
package store

import (
	"context"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

// Reader is the read side of the link store.
type Reader interface {
	// Get returns the link stored under url with its source body, or nil
	// when there is none.
	Get(ctx context.Context, url string) (*domain.Link, error)
	// Values returns every stored link without source bodies.
	Values(ctx context.Context) ([]*domain.Link, error)
	// Glob returns links whose URL matches a shell wildcard pattern.
	Glob(ctx context.Context, pattern string) ([]*domain.Link, error)
}

// Writer persists links.
type Writer interface {
	// Write upserts link keyed by URL and reports whether a row changed.
	Write(ctx context.Context, link *domain.Link) (bool, error)
}

// ReadWriter is the full boundary the import and enrichment flows consume.
type ReadWriter interface {
	Reader
	Writer
}

// ListParams filters and paginates List and Count.
type ListParams struct {
	Query  string // substring of url or title
	Tag    string // substring of the encoded tag list
	Hidden *bool
	Offset int
	Limit  int
}

// Store is a ReadWriter with the browsing and maintenance extras the CLI
// and serve mode use.
type Store interface {
	ReadWriter

	List(ctx context.Context, params ListParams) ([]*domain.Link, error)
	Count(ctx context.Context, params ListParams) (int, error)
	AllTags(ctx context.Context) ([]string, error)
	SetHidden(ctx context.Context, url string, hidden bool) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
