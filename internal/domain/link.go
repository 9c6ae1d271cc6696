package domain

import (
	"slices"
	"strings"
	"time"
)

// Link is the persisted record for one URL and everything learned about it.
//
// A Link is uniquely identified by its URL. The URL is never rewritten once
// the record exists; every other field is mutated in place by the merge
// engine and the enrichment stages.
type Link struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// URL is case and scheme sensitive, fragment stripped at extraction.
	URL string

	// ─────────────────────────────
	// Authored in the link dump
	// ─────────────────────────────

	Title *string
	Via   *Via
	Tags  TagSet

	// Notes are newline-joined from every notes block of the document.
	Notes *string

	// ─────────────────────────────
	// Provenance & timeline
	// ─────────────────────────────

	FoundAt      *time.Time
	ReadAt       *time.Time
	PublishedAt  *time.Time
	FromFilename *string

	// ─────────────────────────────
	// Enrichment
	// ─────────────────────────────

	Image *string

	// Meta keeps every meta tag value in document order.
	Meta map[string][]string

	// Src holds the raw fetched body. nil means absent.
	Src           []byte
	ExtractedText *string

	// HTTPHeaders keys are lowercased header names.
	HTTPHeaders map[string][]string

	// ─────────────────────────────
	// Idempotency gates
	// ─────────────────────────────

	// LastFetched being set means the fetch stage must not run again.
	LastFetched *time.Time

	// LastProcessed being set means no extraction stage may run again.
	LastProcessed *time.Time

	// ─────────────────────────────
	// User controlled
	// ─────────────────────────────

	Hidden bool
}

// NewLink returns a draft with an empty tag set.
func NewLink(url string) *Link {
	return &Link{URL: url, Tags: NewTagSet()}
}

// Clone returns a deep copy of l.
func (l *Link) Clone() *Link {
	if l == nil {
		return nil
	}
	c := *l
	c.Title = clonePtr(l.Title)
	c.Notes = clonePtr(l.Notes)
	c.FromFilename = clonePtr(l.FromFilename)
	c.Image = clonePtr(l.Image)
	c.ExtractedText = clonePtr(l.ExtractedText)
	c.FoundAt = clonePtr(l.FoundAt)
	c.ReadAt = clonePtr(l.ReadAt)
	c.PublishedAt = clonePtr(l.PublishedAt)
	c.LastFetched = clonePtr(l.LastFetched)
	c.LastProcessed = clonePtr(l.LastProcessed)
	if l.Via != nil {
		v := *l.Via
		c.Via = &v
	}
	c.Tags = l.Tags.Clone()
	c.Meta = cloneMulti(l.Meta)
	c.HTTPHeaders = cloneMulti(l.HTTPHeaders)
	if l.Src != nil {
		c.Src = slices.Clone(l.Src)
	}
	return &c
}

// HasNotes reports whether the link carries non-blank notes.
func (l *Link) HasNotes() bool {
	return l.Notes != nil && strings.TrimSpace(*l.Notes) != ""
}

// TitleOrURL is used wherever a human label is needed.
func (l *Link) TitleOrURL() string {
	if l.Title != nil && *l.Title != "" {
		return *l.Title
	}
	return l.URL
}

// Slug is a lowercase ASCII label built from TitleOrURL, used as the
// reference name in attribution lists.
func (l *Link) Slug() string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(l.TitleOrURL()) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}

// ContentType returns the first Content-Type header value, if any.
func (l *Link) ContentType() string {
	if v := l.HTTPHeaders["content-type"]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// ContentClass classifies the stored response by its Content-Type header.
func (l *Link) ContentClass() ContentClass {
	if len(l.HTTPHeaders["content-type"]) == 0 {
		return ClassUnknown
	}
	return ClassifyContentType(l.ContentType())
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMulti(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
