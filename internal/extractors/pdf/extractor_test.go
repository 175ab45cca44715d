package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/archivemind/corpus/internal/core/domain"
)

func TestFormats(t *testing.T) {
	e := New()
	assert.Equal(t, []domain.DocumentFormat{domain.FormatPDF}, e.Formats())
}

func TestExtract_RejectsNonPDFBytes(t *testing.T) {
	e := New()

	_, err := e.Extract(context.Background(), &domain.RawDocument{
		Filename: "fake.pdf",
		Format:   domain.FormatPDF,
		Content:  []byte("this is not a pdf"),
	})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtract_RejectsEmptyContent(t *testing.T) {
	e := New()

	_, err := e.Extract(context.Background(), &domain.RawDocument{
		Filename: "empty.pdf",
		Format:   domain.FormatPDF,
		Content:  nil,
	})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}
