package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/linkdump/internal/blobcache"
	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

// ExternalStage moves Src and ExtractedText into the blob cache on write
// and loads them back on read, keeping the link database small.
type ExternalStage struct {
	cache blobcache.Cache
}

func NewExternalStage(cache blobcache.Cache) *ExternalStage {
	return &ExternalStage{cache: cache}
}

func (s *ExternalStage) Name() string { return "external" }
func (s *ExternalStage) Kind() Kind   { return KindCache }

func (s *ExternalStage) Process(ctx context.Context, link *domain.Link) error {
	if link.Src != nil {
		if err := s.cache.Write(ctx, blobcache.SourceKey(link.URL), link.Src); err != nil {
			return fmt.Errorf("failed to cache source: %w", err)
		}
		link.Src = nil
	}

	if link.ExtractedText != nil {
		if err := s.cache.Write(ctx, blobcache.TextKey(link.URL), []byte(*link.ExtractedText)); err != nil {
			return fmt.Errorf("failed to cache text: %w", err)
		}
		link.ExtractedText = nil
	}
	return nil
}

// Hydrate fills Src and ExtractedText from the cache when they are absent.
func (s *ExternalStage) Hydrate(ctx context.Context, link *domain.Link) error {
	if link.Src == nil {
		data, ok, err := s.cache.Read(ctx, blobcache.SourceKey(link.URL))
		if err != nil {
			return fmt.Errorf("failed to read cached source: %w", err)
		}
		if ok {
			link.Src = data
		}
	}

	if link.ExtractedText == nil {
		data, ok, err := s.cache.Read(ctx, blobcache.TextKey(link.URL))
		if err != nil {
			return fmt.Errorf("failed to read cached text: %w", err)
		}
		if ok {
			text := strings.ToValidUTF8(string(data), "�")
			link.ExtractedText = &text
		}
	}
	return nil
}
