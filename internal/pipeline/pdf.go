package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

const defaultPDFTimeout = 30 * time.Second

var (
	// ErrExtractionPanicked wraps a panic raised by the PDF parser.
	ErrExtractionPanicked = errors.New("pdf extraction panicked")
	// ErrExtractionTimeout is returned when the parser exceeds its deadline.
	ErrExtractionTimeout = errors.New("pdf extraction timed out")
)

// PDFStage extracts plain text from PDF bodies. The parser runs in its own
// goroutine under a deadline and a recover, so malformed documents only
// cost the link its text.
type PDFStage struct {
	timeout time.Duration
	extract func([]byte) (string, error)
	logger  logger.Logger
}

func NewPDFStage(timeout time.Duration, log logger.Logger) *PDFStage {
	if timeout <= 0 {
		timeout = defaultPDFTimeout
	}
	return &PDFStage{timeout: timeout, extract: pdfText, logger: log}
}

func (s *PDFStage) Name() string { return "pdf" }
func (s *PDFStage) Kind() Kind   { return KindExtract }

func (s *PDFStage) Process(ctx context.Context, link *domain.Link) error {
	if link.LastProcessed != nil || link.Src == nil || link.ContentClass() != domain.ClassPDF {
		return nil
	}
	link.LastProcessed = now()

	text, err := s.isolated(ctx, link.Src)
	if err != nil {
		s.logger.Warn("pdf extraction failed",
			logger.URL(link.URL),
			logger.Error(err))
		link.ExtractedText = nil
		return nil
	}

	if text = strings.TrimSpace(text); text != "" {
		link.ExtractedText = &text
	}
	return nil
}

type extractResult struct {
	text string
	err  error
}

// isolated runs extract on a copy of src. When the deadline passes first
// the worker goroutine is abandoned and finishes on its own.
func (s *PDFStage) isolated(ctx context.Context, src []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data := bytes.Clone(src)
	done := make(chan extractResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractResult{err: fmt.Errorf("%w: %v", ErrExtractionPanicked, r)}
			}
		}()
		text, err := s.extract(data)
		done <- extractResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ErrExtractionTimeout
	}
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return b.String(), nil
}
