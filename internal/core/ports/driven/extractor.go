package driven

import (
	"context"

	"github.com/archivemind/corpus/internal/core/domain"
)

// Extractor converts raw bytes of a declared format into normalized text
// plus basic structure metadata. Each extractor handles specific formats.
type Extractor interface {
	// Formats returns the document formats this extractor handles.
	Formats() []domain.DocumentFormat

	// Extract converts raw bytes into normalized text and counts.
	// Corrupt or unreadable input returns an error wrapping
	// domain.ErrExtractionFailed; it is never silently chunked.
	Extract(ctx context.Context, raw *domain.RawDocument) (*domain.ExtractResult, error)
}
