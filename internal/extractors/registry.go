package extractors

import (
	"fmt"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
)

// Registry maps document formats to their extractors.
type Registry struct {
	byFormat map[domain.DocumentFormat]driven.Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		byFormat: make(map[domain.DocumentFormat]driven.Extractor),
	}
}

// Register adds an extractor for every format it declares.
func (r *Registry) Register(e driven.Extractor) {
	for _, format := range e.Formats() {
		r.byFormat[format] = e
	}
}

// Get returns the extractor for a format, failing closed on unknown formats.
func (r *Registry) Get(format domain.DocumentFormat) (driven.Extractor, error) {
	e, ok := r.byFormat[format]
	if !ok {
		return nil, fmt.Errorf("format %q: %w", format, domain.ErrUnsupportedFormat)
	}
	return e, nil
}

// Formats returns all registered formats.
func (r *Registry) Formats() []domain.DocumentFormat {
	formats := make([]domain.DocumentFormat, 0, len(r.byFormat))
	for format := range r.byFormat {
		formats = append(formats, format)
	}
	return formats
}
