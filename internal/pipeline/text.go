package pipeline

import (
	"context"
	"unicode/utf8"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

// TextStage copies plain-text bodies into ExtractedText when they are
// valid UTF-8.
type TextStage struct{}

func NewTextStage() *TextStage { return &TextStage{} }

func (s *TextStage) Name() string { return "text" }
func (s *TextStage) Kind() Kind   { return KindExtract }

func (s *TextStage) Process(_ context.Context, link *domain.Link) error {
	if link.LastProcessed != nil || link.Src == nil || link.ContentClass() != domain.ClassText {
		return nil
	}
	link.LastProcessed = now()

	if !utf8.Valid(link.Src) {
		link.ExtractedText = nil
		return nil
	}
	text := string(link.Src)
	link.ExtractedText = &text
	return nil
}
