// Package plaintext extracts text from TXT and Markdown documents.
package plaintext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text and Markdown documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the document formats this extractor handles.
func (e *Extractor) Formats() []domain.DocumentFormat {
	return []domain.DocumentFormat{
		domain.FormatText,
		domain.FormatMarkdown,
	}
}

// Extract converts raw bytes into normalized text and paragraph counts.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%s: not valid UTF-8 text: %w",
			raw.Filename, domain.ErrExtractionFailed)
	}

	text := string(raw.Content)

	return &domain.ExtractResult{
		Text:           text,
		Title:          extractTitle(raw, text),
		PageCount:      1,
		ParagraphCount: countParagraphs(text),
	}, nil
}

// extractTitle prefers the first Markdown heading, then falls back to a
// cleaned-up filename.
func extractTitle(raw *domain.RawDocument, text string) string {
	if raw.Format == domain.FormatMarkdown {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if heading := strings.TrimPrefix(line, "# "); heading != line {
				if heading = strings.TrimSpace(heading); heading != "" {
					return heading
				}
			}
		}
	}
	return titleFromFilename(raw.Filename)
}

// titleFromFilename strips the extension and turns separators into spaces.
func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
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
