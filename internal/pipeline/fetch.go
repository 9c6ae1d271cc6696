package pipeline

import (
	"context"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/fetch"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/utils"
)

// Fetcher is the network boundary used by FetchStage.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// FetchStage downloads the link target once.
//
// An unreachable host or any other failed request leaves the link
// untouched. A non-2xx answer also
// leaves LastFetched unset so a later run can try again; every other gate
// in the pipeline is set as soon as the stage runs.
type FetchStage struct {
	client Fetcher
	logger logger.Logger
}

func NewFetchStage(client Fetcher, log logger.Logger) *FetchStage {
	return &FetchStage{client: client, logger: log}
}

func (s *FetchStage) Name() string { return "fetch" }
func (s *FetchStage) Kind() Kind   { return KindFetch }

func (s *FetchStage) Process(ctx context.Context, link *domain.Link) error {
	if link.LastFetched != nil {
		s.logger.Debug("already fetched",
			logger.URL(link.URL),
			logger.Time("last_fetched", *link.LastFetched))
		return nil
	}

	resp, err := s.client.Fetch(ctx, link.URL)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.logger.Warn("fetch failed, skipping enrichment",
			logger.URL(link.URL),
			logger.Error(err))
		return nil
	}
	if resp == nil {
		s.logger.Warn("host unreachable, skipping enrichment", logger.URL(link.URL))
		return nil
	}

	if !resp.Success() {
		utils.Close(resp)
		s.logger.Warn("fetch returned non-success status",
			logger.URL(link.URL),
			logger.Int("status", resp.StatusCode))
		return nil
	}

	link.LastFetched = now()
	link.HTTPHeaders = resp.Header
	link.Src = nil

	class := link.ContentClass()
	if !class.KeepsBody() {
		utils.Close(resp)
		s.logger.Info("not keeping body",
			logger.URL(link.URL),
			logger.String("content_type", link.ContentType()))
		return nil
	}

	body, err := resp.ReadBody()
	if err != nil {
		s.logger.Warn("failed to read body",
			logger.URL(link.URL),
			logger.Error(err))
		return nil
	}
	link.Src = body
	return nil
}
