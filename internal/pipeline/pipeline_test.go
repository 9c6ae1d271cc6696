package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/blobcache"
	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/fetch"
	"github.com/MrSnakeDoc/linkdump/internal/store/memory"
)

func newTestCache(t *testing.T) *blobcache.FS {
	t.Helper()
	cache, err := blobcache.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}
	return cache
}

func TestBuilderValidatesOrder(t *testing.T) {
	log := testLogger()
	sink := memory.New()
	cache := newTestCache(t)
	fetcher := fetch.New(fetch.Config{})

	tests := []struct {
		name    string
		sink    *memory.Store
		stages  []Stage
		wantErr error
	}{
		{
			name:   "import order",
			sink:   sink,
			stages: []Stage{NewFetchStage(fetcher, log), NewHTMLStage(log), NewExternalStage(cache)},
		},
		{
			name:   "extract only",
			sink:   sink,
			stages: []Stage{NewHTMLStage(log), NewPDFStage(0, log)},
		},
		{
			name:    "extract before fetch",
			sink:    sink,
			stages:  []Stage{NewHTMLStage(log), NewFetchStage(fetcher, log)},
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "cache before extract",
			sink:    sink,
			stages:  []Stage{NewExternalStage(cache), NewTextStage()},
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "duplicate stage",
			sink:    sink,
			stages:  []Stage{NewHTMLStage(log), NewHTMLStage(log)},
			wantErr: ErrDuplicateStage,
		},
		{
			name:    "missing sink",
			stages:  []Stage{NewHTMLStage(log)},
			wantErr: ErrNoSink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.name, nil, log)
			if tt.sink != nil {
				b = NewBuilder(tt.name, tt.sink, log)
			}
			_, err := b.Then(tt.stages...).Build()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuilderSkipsNilStages(t *testing.T) {
	var external *ExternalStage
	p, err := NewBuilder("no cache", memory.New(), testLogger()).
		Then(NewHTMLStage(testLogger()), external).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := p.Stages(); len(got) != 1 || got[0] != "html" {
		t.Errorf("Stages() = %v, want [html]", got)
	}
}

func TestCompositionStages(t *testing.T) {
	deps := Deps{
		Fetcher: fetch.New(fetch.Config{}),
		Cache:   newTestCache(t),
		Sink:    memory.New(),
		Logger:  testLogger(),
	}

	tests := []struct {
		name  string
		build func(Deps) (*Pipeline, error)
		want  []string
	}{
		{"import", NewImport, []string{"fetch", "html", "external"}},
		{"rebuild", NewRebuild, []string{"html", "pdf", "external"}},
		{"refetch", NewRefetch, []string{"fetch", "text", "html", "pdf", "external"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.build(deps)
			if err != nil {
				t.Fatalf("build error = %v", err)
			}
			got := p.Stages()
			if len(got) != len(tt.want) {
				t.Fatalf("Stages() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Stages()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestImportPipelineEndToEnd(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Strict-Transport-Security", "max-age=1")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	sink := memory.New()
	cache := newTestCache(t)
	p, err := NewImport(Deps{
		Fetcher: fetch.New(fetch.Config{}),
		Cache:   cache,
		Sink:    sink,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("NewImport() error = %v", err)
	}
	ctx := context.Background()

	if _, err := p.Write(ctx, domain.NewLink(server.URL)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	raw, _ := sink.Get(ctx, server.URL)
	if raw == nil {
		t.Fatal("link was not persisted")
	}
	if raw.Src != nil || raw.ExtractedText != nil {
		t.Error("blobs must live in the cache, not the store")
	}
	if raw.Title == nil || *raw.Title != "Bar" {
		t.Errorf("Title = %v, want Bar", raw.Title)
	}
	if _, ok := raw.HTTPHeaders["strict-transport-security"]; ok {
		t.Error("denylisted header persisted")
	}
	if raw.LastFetched == nil || raw.LastProcessed == nil {
		t.Error("both gates should be set")
	}

	hydrated, err := p.Get(ctx, server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(hydrated.Src) != articleHTML {
		t.Error("Get should hydrate Src from the cache")
	}
	if hydrated.ExtractedText == nil {
		t.Error("Get should hydrate ExtractedText from the cache")
	}

	// A second write of the stored record must not hit the network again.
	if _, err := p.Write(ctx, hydrated); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", calls.Load())
	}
}

func TestRebuildPDFPanicStillPersists(t *testing.T) {
	sink := memory.New()
	log := testLogger()

	stage := NewPDFStage(time.Second, log)
	stage.extract = func([]byte) (string, error) { panic("boom") }

	p, err := NewBuilder("rebuild", sink, log).Then(NewHTMLStage(log), stage).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := p.Write(context.Background(), pdfLink()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	stored, _ := sink.Get(context.Background(), "https://example.com/paper.pdf")
	if stored == nil {
		t.Fatal("link was not persisted")
	}
	if stored.LastProcessed == nil {
		t.Error("LastProcessed should be set")
	}
	if stored.ExtractedText != nil {
		t.Errorf("ExtractedText = %q, want nil", *stored.ExtractedText)
	}
}

func TestPipelineValuesAndGlobHydrate(t *testing.T) {
	sink := memory.New()
	cache := newTestCache(t)
	ctx := context.Background()

	p, err := NewBuilder("cache only", sink, testLogger()).Then(NewExternalStage(cache)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://b.com/3"} {
		link := domain.NewLink(u)
		link.Src = []byte("src " + u)
		link.ExtractedText = domain.StringPtr("text " + u)
		if _, err := p.Write(ctx, link); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	all, err := p.Values(ctx)
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	for _, l := range all {
		if string(l.Src) != "src "+l.URL {
			t.Errorf("Values() Src of %s = %q", l.URL, l.Src)
		}
	}

	matched, err := p.Glob(ctx, "https://a.com/*")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("Glob() matched %d, want 2", len(matched))
	}
	for _, l := range matched {
		if l.ExtractedText == nil || *l.ExtractedText != "text "+l.URL {
			t.Errorf("Glob() text of %s = %v", l.URL, l.ExtractedText)
		}
	}
}

func TestExternalHydrateKeepsPresentValues(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	_ = cache.Write(ctx, blobcache.SourceKey("https://a.com/"), []byte("cached"))

	link := domain.NewLink("https://a.com/")
	link.Src = []byte("in memory")

	if err := NewExternalStage(cache).Hydrate(ctx, link); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if string(link.Src) != "in memory" {
		t.Errorf("Src = %q, want the in-memory value", link.Src)
	}
	if link.ExtractedText != nil {
		t.Error("missing text should stay nil")
	}
}

func TestPoolRunsEveryLinkWithinLimit(t *testing.T) {
	links := make([]*domain.Link, 20)
	for i := range links {
		links[i] = domain.NewLink("https://example.com/" + string(rune('a'+i)))
	}

	var running, peak atomic.Int32
	boom := errors.New("boom")

	results, err := NewPool(3).Run(context.Background(), links, func(_ context.Context, l *domain.Link) (bool, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if l.URL == "https://example.com/c" {
			return false, boom
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	failed := 0
	for i, r := range results {
		if r.URL != links[i].URL {
			t.Errorf("results[%d].URL = %s, want %s", i, r.URL, links[i].URL)
		}
		if r.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}
