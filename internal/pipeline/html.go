package pipeline

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

// Candidate weights. A candidate replaces the current one only with a
// strictly higher weight, so ties keep the first seen.
var (
	titleWeights = map[string]int{
		"title":              5,
		"og:title":           4,
		"twitter:title":      3,
		"twitter:text:title": 0,
	}
	publishedWeights = map[string]int{
		"date.created":           5,
		"date":                   4,
		"article:published_time": 3,
		"DC.Date":                0,
	}
	imageWeights = map[string]int{
		"og:image":          5,
		"og:image:url":      5,
		"twitter:image":     4,
		"twitter:image:src": 4,
	}
)

const (
	titleTagWeight = 2
	timeTagWeight  = 2
)

// nonContentSelectors lists elements to strip before extracting body text.
const nonContentSelectors = "script, style, noscript, nav, header, footer"

// HTMLStage pulls title, publication date, image, meta tags and readable
// text out of an HTML body.
type HTMLStage struct {
	logger logger.Logger
}

func NewHTMLStage(log logger.Logger) *HTMLStage {
	return &HTMLStage{logger: log}
}

func (s *HTMLStage) Name() string { return "html" }
func (s *HTMLStage) Kind() Kind   { return KindExtract }

func (s *HTMLStage) Process(_ context.Context, link *domain.Link) error {
	if link.LastProcessed != nil || link.Src == nil || link.ContentClass() != domain.ClassHTML {
		return nil
	}
	link.LastProcessed = now()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(link.Src))
	if err != nil {
		s.logger.Warn("failed to parse html",
			logger.URL(link.URL),
			logger.Error(err))
		return nil
	}

	found := scanDocument(doc)

	if link.Title == nil || *link.Title == "" {
		link.Title = found.title.ptr()
	}
	if link.PublishedAt == nil {
		link.PublishedAt = found.published
	}
	if link.Image == nil || *link.Image == "" {
		link.Image = found.image.ptr()
	}
	if len(link.Meta) == 0 {
		link.Meta = found.meta
	}

	if text := readableText(link.Src, link.URL, doc); text != "" {
		link.ExtractedText = &text
	}
	return nil
}

// ───── weighted candidates ─────

type candidate struct {
	weight int
	value  string
	set    bool
}

func (c *candidate) offer(weight int, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if !c.set || weight > c.weight {
		c.weight, c.value, c.set = weight, value, true
	}
}

func (c candidate) ptr() *string {
	if !c.set {
		return nil
	}
	v := c.value
	return &v
}

type scanResult struct {
	title     candidate
	image     candidate
	published *time.Time
	meta      map[string][]string
}

// scanDocument walks head title, head meta and time elements once, in
// document order.
func scanDocument(doc *goquery.Document) scanResult {
	res := scanResult{meta: make(map[string][]string)}
	publishedWeight := -1

	offerDate := func(weight int, value string) {
		if weight <= publishedWeight {
			return
		}
		if t, ok := parsePublished(value); ok {
			res.published = &t
			publishedWeight = weight
		}
	}

	doc.Find("head title, head meta, time").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "title":
			res.title.offer(titleTagWeight, sel.Text())

		case "time":
			if datetime, ok := sel.Attr("datetime"); ok {
				offerDate(timeTagWeight, datetime)
			}

		case "meta":
			name := metaName(sel)
			content, ok := sel.Attr("content")
			if name == "" || !ok {
				return
			}
			res.meta[name] = append(res.meta[name], content)

			if w, ok := titleWeights[name]; ok {
				res.title.offer(w, content)
			}
			if w, ok := imageWeights[name]; ok {
				res.image.offer(w, content)
			}
			if w, ok := publishedWeights[name]; ok {
				offerDate(w, content)
			}
		}
	})

	return res
}

// metaName returns the name, RDFa property or microdata itemprop of a meta
// element.
func metaName(sel *goquery.Selection) string {
	for _, attr := range []string{"name", "property", "itemprop"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parsePublished accepts a bare date, read as local midnight, or a full
// RFC 3339 timestamp.
func parsePublished(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if len(value) >= 10 {
		if t, err := time.ParseInLocation("2006-01-02", value[:10], time.Local); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ───── text ─────

// readableText prefers the readability article text and falls back to the
// body with navigation chrome removed.
func readableText(src []byte, pageURL string, doc *goquery.Document) string {
	if parsed, err := url.Parse(pageURL); err == nil {
		article, err := readability.FromReader(bytes.NewReader(src), parsed)
		if err == nil {
			if text := strings.TrimSpace(article.TextContent); text != "" {
				return text
			}
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	body = body.Clone()
	body.Find(nonContentSelectors).Remove()
	return collapseBlankLines(body.Text())
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
