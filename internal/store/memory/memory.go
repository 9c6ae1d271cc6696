// Package memory is a map-backed link store used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps links in memory. Every read and write copies the link so
// callers never share state with the store.
type Store struct {
	mu        sync.RWMutex
	links     map[string]*domain.Link // URL -> Link
	lastWrite time.Time
}

// New creates an empty memory store
func New() *Store {
	return &Store{links: make(map[string]*domain.Link)}
}

func (s *Store) Get(_ context.Context, url string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[url]
	if !ok {
		return nil, nil
	}
	return link.Clone(), nil
}

func (s *Store) Values(_ context.Context) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := make([]*domain.Link, 0, len(s.links))
	for _, link := range s.links {
		c := link.Clone()
		c.Src = nil
		links = append(links, c)
	}
	return links, nil
}

// Glob matches pattern against URLs with shell wildcard rules.
func (s *Store) Glob(_ context.Context, pattern string) ([]*domain.Link, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []*domain.Link
	for url, link := range s.links {
		if g.Match(url) {
			links = append(links, link.Clone())
		}
	}
	return links, nil
}

func (s *Store) Write(_ context.Context, link *domain.Link) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[link.URL] = link.Clone()
	s.lastWrite = time.Now()
	return true, nil
}

// ─────────────────────────────────────────────────────────────────
// Browsing
// ─────────────────────────────────────────────────────────────────

func (s *Store) List(_ context.Context, params store.ListParams) ([]*domain.Link, error) {
	s.mu.RLock()
	matched := s.filter(params)
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return newer(matched[i].FoundAt, matched[j].FoundAt)
	})

	if params.Offset >= len(matched) {
		return []*domain.Link{}, nil
	}
	matched = matched[params.Offset:]
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}
	return matched, nil
}

func (s *Store) Count(_ context.Context, params store.ListParams) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filter(params)), nil
}

func (s *Store) AllTags(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := domain.NewTagSet()
	for _, link := range s.links {
		all.Union(link.Tags)
	}
	return all.Sorted(), nil
}

// ─────────────────────────────────────────────────────────────────
// Maintenance
// ─────────────────────────────────────────────────────────────────

func (s *Store) SetHidden(_ context.Context, url string, hidden bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[url]
	if !ok {
		return false, nil
	}
	link.Hidden = hidden
	s.lastWrite = time.Now()
	return true, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Len returns the number of stored links
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.links)
}

// LastWrite returns the time of the most recent write
func (s *Store) LastWrite() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastWrite
}

// filter must be called with the read lock held.
func (s *Store) filter(params store.ListParams) []*domain.Link {
	out := make([]*domain.Link, 0, len(s.links))
	for _, link := range s.links {
		if params.Hidden != nil && link.Hidden != *params.Hidden {
			continue
		}
		if params.Query != "" && !strings.Contains(link.URL, params.Query) &&
			(link.Title == nil || !strings.Contains(*link.Title, params.Query)) {
			continue
		}
		if params.Tag != "" && !hasTagLike(link.Tags, params.Tag) {
			continue
		}
		c := link.Clone()
		c.Src = nil
		out = append(out, c)
	}
	return out
}

func hasTagLike(tags domain.TagSet, needle string) bool {
	for tag := range tags {
		if strings.Contains(tag, needle) {
			return true
		}
	}
	return false
}

// newer orders links by FoundAt descending with undated links last.
func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
