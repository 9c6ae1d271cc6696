package pipeline

import (
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/blobcache"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

// Deps are the collaborators shared by the three compositions. Cache may
// be nil, in which case bodies and text are stored with the link.
type Deps struct {
	Fetcher    Fetcher
	Cache      blobcache.Cache
	Sink       store.ReadWriter
	PDFTimeout time.Duration
	Logger     logger.Logger
}

func (d Deps) external() *ExternalStage {
	if d.Cache == nil {
		return nil
	}
	return NewExternalStage(d.Cache)
}

// NewImport builds fetch -> html -> external -> persist, the chain used
// when a link dump is imported.
func NewImport(d Deps) (*Pipeline, error) {
	return NewBuilder("import", d.Sink, d.Logger.Named("import")).
		Then(
			NewFetchStage(d.Fetcher, d.Logger.Named("fetch")),
			NewHTMLStage(d.Logger.Named("html")),
			d.external(),
		).
		Build()
}

// NewRebuild builds html -> pdf -> external -> persist. Callers clear
// LastProcessed first so extraction runs again on the cached body.
func NewRebuild(d Deps) (*Pipeline, error) {
	return NewBuilder("rebuild", d.Sink, d.Logger.Named("rebuild")).
		Then(
			NewHTMLStage(d.Logger.Named("html")),
			NewPDFStage(d.PDFTimeout, d.Logger.Named("pdf")),
			d.external(),
		).
		Build()
}

// NewRefetch builds the full chain. Callers clear LastFetched and
// LastProcessed first.
func NewRefetch(d Deps) (*Pipeline, error) {
	return NewBuilder("refetch", d.Sink, d.Logger.Named("refetch")).
		Then(
			NewFetchStage(d.Fetcher, d.Logger.Named("fetch")),
			NewTextStage(),
			NewHTMLStage(d.Logger.Named("html")),
			NewPDFStage(d.PDFTimeout, d.Logger.Named("pdf")),
			d.external(),
		).
		Build()
}
