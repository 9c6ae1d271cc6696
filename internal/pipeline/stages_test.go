package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/fetch"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

const articleHTML = `<!doctype html>
<html>
<head>
  <title>Foo</title>
  <meta name="title" content="Bar">
  <meta property="og:title" content="Baz">
  <meta property="og:image" content="https://example.com/cover.png">
  <meta name="twitter:image" content="https://example.com/small.png">
  <meta name="date" content="2023-04-05">
  <meta property="article:published_time" content="2020-01-01T00:00:00Z">
</head>
<body>
  <nav>menu</nav>
  <article>
    <h1>Heading</h1>
    <p>The first paragraph of the article body, long enough to look like prose.</p>
    <p>A second paragraph with more words so the readability scorer keeps it.</p>
  </article>
  <footer>copyright</footer>
</body>
</html>`

func testLogger() logger.Logger { return logger.New("error", false) }

func htmlLink(url, body string) *domain.Link {
	link := domain.NewLink(url)
	link.HTTPHeaders = map[string][]string{"content-type": {"text/html; charset=utf-8"}}
	link.Src = []byte(body)
	return link
}

func TestFetchStageGate(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	stage := NewFetchStage(fetch.New(fetch.Config{}), testLogger())
	link := domain.NewLink(server.URL)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := stage.Process(ctx, link); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
	if link.LastFetched == nil {
		t.Error("LastFetched should be set")
	}
	if string(link.Src) != articleHTML {
		t.Error("html body should be kept")
	}
}

func TestFetchStageOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		wantFetched bool
		wantSrc     bool
	}{
		{"html kept", http.StatusOK, "text/html", true, true},
		{"pdf kept", http.StatusOK, "application/pdf", true, true},
		{"plain text kept", http.StatusOK, "text/plain; charset=utf-8", true, true},
		{"image dropped", http.StatusOK, "image/png", true, false},
		{"not found leaves gate open", http.StatusNotFound, "text/html", false, false},
		{"server error leaves gate open", http.StatusBadGateway, "text/html", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))
			defer server.Close()

			link := domain.NewLink(server.URL)
			if err := NewFetchStage(fetch.New(fetch.Config{}), testLogger()).Process(context.Background(), link); err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			if (link.LastFetched != nil) != tt.wantFetched {
				t.Errorf("LastFetched set = %v, want %v", link.LastFetched != nil, tt.wantFetched)
			}
			if (link.Src != nil) != tt.wantSrc {
				t.Errorf("Src kept = %v, want %v", link.Src != nil, tt.wantSrc)
			}
			if !tt.wantFetched && link.HTTPHeaders != nil {
				t.Errorf("headers should stay empty on failure, got %v", link.HTTPHeaders)
			}
		})
	}
}

func TestFetchStageUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	link := domain.NewLink(url)
	if err := NewFetchStage(fetch.New(fetch.Config{}), testLogger()).Process(context.Background(), link); err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if link.LastFetched != nil || link.Src != nil {
		t.Error("unreachable host must leave the link untouched")
	}
}

func TestHTMLStageWeightedResolution(t *testing.T) {
	link := htmlLink("https://example.com/post", articleHTML)

	if err := NewHTMLStage(testLogger()).Process(context.Background(), link); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if link.LastProcessed == nil {
		t.Fatal("LastProcessed should be set")
	}
	if link.Title == nil || *link.Title != "Bar" {
		t.Errorf("Title = %v, want Bar", link.Title)
	}
	if link.Image == nil || *link.Image != "https://example.com/cover.png" {
		t.Errorf("Image = %v, want og:image", link.Image)
	}

	wantDate := time.Date(2023, 4, 5, 0, 0, 0, 0, time.Local).UTC()
	if link.PublishedAt == nil || !link.PublishedAt.Equal(wantDate) {
		t.Errorf("PublishedAt = %v, want %v", link.PublishedAt, wantDate)
	}

	if got := link.Meta["og:title"]; len(got) != 1 || got[0] != "Baz" {
		t.Errorf("Meta[og:title] = %v", got)
	}
	if got := link.Meta["article:published_time"]; len(got) != 1 {
		t.Errorf("Meta[article:published_time] = %v", got)
	}

	if link.ExtractedText == nil {
		t.Fatal("ExtractedText should be set")
	}
}

func TestHTMLStageTitleTagOnly(t *testing.T) {
	link := htmlLink("https://example.com/", `<html><head><title> Only Title </title></head><body><p>x</p></body></html>`)

	_ = NewHTMLStage(testLogger()).Process(context.Background(), link)

	if link.Title == nil || *link.Title != "Only Title" {
		t.Errorf("Title = %v, want trimmed <title> text", link.Title)
	}
}

func TestHTMLStageKeepsExistingValues(t *testing.T) {
	link := htmlLink("https://example.com/post", articleHTML)
	link.Title = domain.StringPtr("From the link dump")
	published := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	link.PublishedAt = &published
	link.Meta = map[string][]string{"keep": {"me"}}

	_ = NewHTMLStage(testLogger()).Process(context.Background(), link)

	if *link.Title != "From the link dump" {
		t.Errorf("Title overwritten: %q", *link.Title)
	}
	if !link.PublishedAt.Equal(published) {
		t.Errorf("PublishedAt overwritten: %v", link.PublishedAt)
	}
	if _, ok := link.Meta["og:title"]; ok {
		t.Error("existing meta must not be replaced")
	}
}

func TestHTMLStageSkips(t *testing.T) {
	processed := time.Now()

	tests := []struct {
		name string
		link *domain.Link
	}{
		{"already processed", func() *domain.Link {
			l := htmlLink("https://a.com/", articleHTML)
			l.LastProcessed = &processed
			return l
		}()},
		{"no body", func() *domain.Link {
			l := htmlLink("https://a.com/", articleHTML)
			l.Src = nil
			return l
		}()},
		{"not html", func() *domain.Link {
			l := htmlLink("https://a.com/", articleHTML)
			l.HTTPHeaders = map[string][]string{"content-type": {"application/pdf"}}
			return l
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.link.LastProcessed
			_ = NewHTMLStage(testLogger()).Process(context.Background(), tt.link)
			if tt.link.Title != nil {
				t.Errorf("stage should not run, got title %q", *tt.link.Title)
			}
			if tt.link.LastProcessed != before {
				t.Error("LastProcessed should not change")
			}
		})
	}
}

func TestParsePublished(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"2024-01-05", true},
		{"2024-01-05T10:30:00Z", true},
		{"2024-01-05T10:30:00+02:00", true},
		{"January 5th", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if _, ok := parsePublished(tt.in); ok != tt.wantOK {
				t.Errorf("parsePublished(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
		})
	}
}

func pdfLink() *domain.Link {
	link := domain.NewLink("https://example.com/paper.pdf")
	link.HTTPHeaders = map[string][]string{"content-type": {"application/pdf"}}
	link.Src = []byte("%PDF-1.4 not really a pdf")
	return link
}

func TestPDFStageContainsPanics(t *testing.T) {
	stage := NewPDFStage(time.Second, testLogger())
	stage.extract = func([]byte) (string, error) { panic("parser exploded") }

	link := pdfLink()
	if err := stage.Process(context.Background(), link); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if link.LastProcessed == nil {
		t.Error("LastProcessed should be set even when extraction panics")
	}
	if link.ExtractedText != nil {
		t.Errorf("ExtractedText = %q, want nil", *link.ExtractedText)
	}
}

func TestPDFStageDeadline(t *testing.T) {
	stage := NewPDFStage(20*time.Millisecond, testLogger())
	release := make(chan struct{})
	defer close(release)
	stage.extract = func([]byte) (string, error) {
		<-release
		return "too late", nil
	}

	link := pdfLink()
	start := time.Now()
	_ = stage.Process(context.Background(), link)

	if time.Since(start) > time.Second {
		t.Error("Process() should return at the deadline")
	}
	if link.ExtractedText != nil || link.LastProcessed == nil {
		t.Error("timed out extraction should leave no text and set the gate")
	}
}

func TestPDFStageExtractsText(t *testing.T) {
	stage := NewPDFStage(time.Second, testLogger())
	stage.extract = func([]byte) (string, error) { return "  page one  ", nil }

	link := pdfLink()
	_ = stage.Process(context.Background(), link)

	if link.ExtractedText == nil || *link.ExtractedText != "page one" {
		t.Errorf("ExtractedText = %v, want trimmed text", link.ExtractedText)
	}
}

func TestPDFStageRealParserRejectsGarbage(t *testing.T) {
	link := pdfLink()
	if err := NewPDFStage(time.Second, testLogger()).Process(context.Background(), link); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if link.ExtractedText != nil {
		t.Errorf("garbage pdf produced text %q", *link.ExtractedText)
	}
}

func TestTextStage(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		wantText bool
	}{
		{"valid utf-8", []byte("héllo"), true},
		{"invalid utf-8", []byte{0xff, 0xfe, 0x00}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := domain.NewLink("https://example.com/notes.txt")
			link.HTTPHeaders = map[string][]string{"content-type": {"text/plain"}}
			link.Src = tt.body

			_ = NewTextStage().Process(context.Background(), link)

			if link.LastProcessed == nil {
				t.Error("LastProcessed should be set")
			}
			if (link.ExtractedText != nil) != tt.wantText {
				t.Errorf("ExtractedText set = %v, want %v", link.ExtractedText != nil, tt.wantText)
			}
		})
	}
}

type failingFetcher struct{ err error }

func (f failingFetcher) Fetch(context.Context, string) (*fetch.Response, error) {
	return nil, f.err
}

func TestFetchStageTransportErrorsSkipEnrichment(t *testing.T) {
	err := NewFetchStage(failingFetcher{err: fetch.ErrTooManyRedirects}, testLogger()).
		Process(context.Background(), domain.NewLink("https://a.com/"))
	if err != nil {
		t.Errorf("Process() error = %v, want nil", err)
	}
}

func TestFetchStageSurfacesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFetchStage(failingFetcher{err: context.Canceled}, testLogger()).Process(ctx, domain.NewLink("https://a.com/"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}

func TestFetchStageDropsStaleSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer server.Close()

	link := htmlLink(server.URL, "<html>old</html>")
	if err := NewFetchStage(fetch.New(fetch.Config{}), testLogger()).Process(context.Background(), link); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if link.Src != nil {
		t.Errorf("Src = %q, want nil after fetching a non-document", link.Src)
	}
	if got := link.ContentType(); got != "image/png" {
		t.Errorf("ContentType() = %q, want image/png", got)
	}
}
