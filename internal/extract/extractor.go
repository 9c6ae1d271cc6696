// Package extract turns markdown link dumps into Link drafts.
//
// A link dump is a markdown document whose list items each carry one link,
// optionally followed by a nested list of metadata blocks:
//
//	- some link: https://foo.bar/baz
//	  - tags: alpha, beta
//	  - via: @friend
//	  - notes:
//	    - # heading
//	    - some more text
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

var (
	// ErrNotParagraph is returned when a list item does not start with text.
	ErrNotParagraph = errors.New("list item does not start with a paragraph")
	// ErrNoURL is returned when no http(s) link can be found in an item.
	ErrNoURL = errors.New("no http(s) url found")
)

const titleTrimSet = "-: \t\r\n"

// Document is the result of extracting one LinkSource: drafts keyed by URL,
// kept in first-seen order.
type Document struct {
	order   []string
	links   map[string]*domain.Link
	Skipped int
}

func newDocument() *Document {
	return &Document{links: make(map[string]*domain.Link)}
}

// Links returns the drafts in the order their URL first appeared.
func (d *Document) Links() []*domain.Link {
	out := make([]*domain.Link, 0, len(d.order))
	for _, u := range d.order {
		out = append(out, d.links[u])
	}
	return out
}

// Get returns the draft for url.
func (d *Document) Get(url string) (*domain.Link, bool) {
	l, ok := d.links[url]
	return l, ok
}

func (d *Document) Len() int { return len(d.order) }

// draft returns the accumulated draft for candidate.URL, creating it from
// candidate on first sight. A later item only fills a missing title.
func (d *Document) draft(candidate *domain.Link) *domain.Link {
	if existing, ok := d.links[candidate.URL]; ok {
		if existing.Title == nil {
			existing.Title = candidate.Title
		}
		return existing
	}
	d.links[candidate.URL] = candidate
	d.order = append(d.order, candidate.URL)
	return candidate
}

// Extractor parses link dumps. It is stateless and safe for concurrent use.
type Extractor struct {
	md     goldmark.Markdown
	logger logger.Logger
}

// New returns an Extractor using the GFM task list and strikethrough syntax.
func New(log logger.Logger) *Extractor {
	return &Extractor{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.TaskList,
			),
		),
		logger: log,
	}
}

// Extract returns every link draft found in src. Items that cannot be
// turned into a link are logged and skipped.
func (e *Extractor) Extract(src domain.LinkSource) *Document {
	source := []byte(src.Content)
	root := e.md.Parser().Parse(text.NewReader(source))
	doc := newDocument()

	filename := ""
	if src.Filename != nil {
		filename = *src.Filename
	}

	for block := root.FirstChild(); block != nil; block = block.NextSibling() {
		list, ok := block.(*ast.List)
		if !ok {
			continue
		}

		for item := list.FirstChild(); item != nil; item = item.NextSibling() {
			if _, ok := item.(*ast.ListItem); !ok {
				continue
			}
			if err := e.extractItem(doc, item, source); err != nil {
				doc.Skipped++
				e.logger.Warn("skipping list item",
					logger.File(filename),
					logger.Int("line", lineOf(item, source)),
					logger.Error(err))
			}
		}
	}

	return doc
}

func (e *Extractor) extractItem(doc *Document, item ast.Node, source []byte) error {
	para := item.FirstChild()
	if para == nil || !isParagraph(para) {
		return ErrNotParagraph
	}

	candidate, err := linkFromParagraph(para, source)
	if err != nil {
		return err
	}

	draft := doc.draft(candidate)

	for child := para.NextSibling(); child != nil; child = child.NextSibling() {
		if meta, ok := child.(*ast.List); ok {
			applyMetadata(draft, meta, source)
		}
	}
	return nil
}

// linkFromParagraph finds the link of a list item: the first markdown
// anchor if there is one, otherwise an http(s) token in the flat text.
func linkFromParagraph(para ast.Node, source []byte) (*domain.Link, error) {
	if anchor := firstLink(para); anchor != nil {
		if u, err := cleanURL(string(anchor.Destination)); err == nil {
			title := strings.TrimSpace(unescapePunctuation(string(anchor.Title)))
			if title == "" {
				title = strings.TrimSpace(inlineText(anchor, source))
			}
			link := domain.NewLink(u)
			link.Title = domain.StringPtr(title)
			return link, nil
		}
	}

	flat := stripCheckbox(strings.TrimSpace(inlineText(para, source)))
	title, rawURL, ok := scanForURL(flat)
	if !ok {
		return nil, ErrNoURL
	}

	u, err := cleanURL(rawURL)
	if err != nil {
		return nil, err
	}

	link := domain.NewLink(u)
	link.Title = domain.StringPtr(title)
	return link, nil
}

func firstLink(n ast.Node) *ast.Link {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if l, ok := c.(*ast.Link); ok {
			return l
		}
		if c.HasChildren() {
			if l := firstLink(c); l != nil {
				return l
			}
		}
	}
	return nil
}

// scanForURL looks for the first token equal to http or https, tokens being
// separated by '-', ':' or whitespace. The text before the token is the
// title; when it is empty the text after the URL is used instead, which
// covers "url (title)" layouts.
func scanForURL(s string) (title, rawURL string, ok bool) {
	for i := 0; i < len(s); i++ {
		if i > 0 && !isTokenDelim(s[i-1]) {
			continue
		}
		rest := s[i:]
		if !strings.HasPrefix(rest, "http:") && !strings.HasPrefix(rest, "https:") {
			continue
		}

		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			end = len(rest)
		}

		rawURL = rest[:end]
		title = strings.Trim(s[:i], titleTrimSet)
		if title == "" {
			title = strings.Trim(rest[end:], titleTrimSet+"()")
		}
		return title, rawURL, true
	}
	return "", "", false
}

func isTokenDelim(c byte) bool {
	return c == '-' || c == ':' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func stripCheckbox(s string) string {
	for _, prefix := range []string{`\[ \]`, `[ ]`, `\[x\]`, `[x]`, `[X]`} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

// cleanURL removes escape backslashes, drops the fragment and requires an
// absolute http(s) URL with a host.
func cleanURL(raw string) (string, error) {
	cleaned := strings.NewReplacer(`\`, "", "%5C", "", "%5c", "").Replace(strings.TrimSpace(raw))
	cleaned, _, _ = strings.Cut(cleaned, "#")

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: %w", raw, ErrNoURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	return cleaned, nil
}

func lineOf(n ast.Node, source []byte) int {
	for c := n; c != nil; c = c.FirstChild() {
		if c.Type() == ast.TypeBlock && c.Lines().Len() > 0 {
			start := c.Lines().At(0).Start
			return strings.Count(string(source[:start]), "\n") + 1
		}
	}
	return 0
}
