package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

const defaultWorkers = 8

// Result is the outcome of one link handled by a Pool.
type Result struct {
	URL     string
	Changed bool
	Err     error
}

// Pool fans links out to a bounded number of goroutines. A failing link
// does not stop the others.
type Pool struct {
	limit int
}

func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = defaultWorkers
	}
	return &Pool{limit: limit}
}

// Run calls fn for every link and returns one Result per link, in input
// order. It returns early only when ctx is cancelled.
func (p *Pool) Run(ctx context.Context, links []*domain.Link, fn func(context.Context, *domain.Link) (bool, error)) ([]Result, error) {
	results := make([]Result, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i, link := range links {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			changed, err := fn(gctx, link)
			results[i] = Result{URL: link.URL, Changed: changed, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
