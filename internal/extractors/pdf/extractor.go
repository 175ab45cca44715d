// Package pdf extracts text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles PDF documents.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the document formats this extractor handles.
func (e *Extractor) Formats() []domain.DocumentFormat {
	return []domain.DocumentFormat{domain.FormatPDF}
}

// Extract converts PDF bytes into normalized text and page counts.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%s: unreadable PDF: %w",
			raw.Filename, domain.ErrExtractionFailed)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%s: extracting text: %w",
			raw.Filename, domain.ErrExtractionFailed)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("%s: reading text: %w",
			raw.Filename, domain.ErrExtractionFailed)
	}

	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: no extractable text: %w",
			raw.Filename, domain.ErrExtractionFailed)
	}

	return &domain.ExtractResult{
		Text:           text,
		PageCount:      reader.NumPage(),
		ParagraphCount: countParagraphs(text),
	}, nil
}

// countParagraphs counts blank-line separated blocks with content.
func countParagraphs(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}
