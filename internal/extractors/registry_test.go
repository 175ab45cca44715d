package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/extractors/docx"
	"github.com/archivemind/corpus/internal/extractors/plaintext"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(docx.New())

	e, err := r.Get(domain.FormatText)
	require.NoError(t, err)
	assert.IsType(t, &plaintext.Extractor{}, e)

	e, err = r.Get(domain.FormatDOC)
	require.NoError(t, err)
	assert.IsType(t, &docx.Extractor{}, e)

	assert.Len(t, r.Formats(), 4)
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	r := NewRegistry()
	r.Register(plaintext.New())

	_, err := r.Get(domain.FormatPDF)
	require.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
