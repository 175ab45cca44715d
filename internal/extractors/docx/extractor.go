// Package docx extracts text from DOCX (and OOXML-packaged DOC) documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles DOCX documents. Legacy binary DOC files that are not
// OOXML packages surface an extraction error rather than garbage text.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the document formats this extractor handles.
func (e *Extractor) Formats() []domain.DocumentFormat {
	return []domain.DocumentFormat{
		domain.FormatDOCX,
		domain.FormatDOC,
	}
}

// Extract converts a DOCX package into normalized text and counts.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawDocument) (*domain.ExtractResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%s: not an OOXML package: %w",
			raw.Filename, domain.ErrExtractionFailed)
	}

	paragraphs, err := extractParagraphs(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", raw.Filename, err)
	}

	return &domain.ExtractResult{
		Text:           strings.Join(paragraphs, "\n"),
		PageCount:      1,
		ParagraphCount: len(paragraphs),
	}, nil
}

// extractParagraphs pulls paragraph text from word/document.xml.
func extractParagraphs(reader *zip.Reader) ([]string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening document.xml: %w", domain.ErrExtractionFailed)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading document.xml: %w", domain.ErrExtractionFailed)
		}

		return parseDocumentXML(content)
	}
	return nil, fmt.Errorf("missing word/document.xml: %w", domain.ErrExtractionFailed)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts non-empty paragraph text from the document XML.
func parseDocumentXML(content []byte) ([]string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parsing document.xml: %w", domain.ErrExtractionFailed)
	}

	var paragraphs []string
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range para.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return paragraphs, nil
}
