// Package chunker splits normalized text into ordered, overlapping windows
// sized in tokens when a tokenizer is available, or in characters otherwise.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// DefaultChunkSize is the default window size in tokens.
const DefaultChunkSize = 500

// DefaultOverlap is the default overlap between windows in tokens.
const DefaultOverlap = 50

// DefaultCharsPerToken is the characters-per-token heuristic used when no
// tokenizer is available.
const DefaultCharsPerToken = 4

// DefaultSnapThreshold is the fraction of the nominal window size past which
// the character-mode window end snaps back to a preceding sentence boundary.
const DefaultSnapThreshold = 0.7

var whitespaceRE = regexp.MustCompile(`\s+`)

// Tokenizer encodes text to token IDs and decodes them back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunker slides a window of chunkSize tokens advancing by
// chunkSize - overlap. Without a tokenizer it falls back to character
// windows with sentence-boundary snapping.
type Chunker struct {
	chunkSize     int
	overlap       int
	charsPerToken int
	snapThreshold float64
	tokenizer     Tokenizer
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in tokens.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithTokenizer sets the tokenizer used for token-space windowing.
// When nil, the chunker operates in character space.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) {
		c.tokenizer = t
	}
}

// WithCharsPerToken sets the characters-per-token heuristic for
// character-space windowing.
func WithCharsPerToken(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.charsPerToken = n
		}
	}
}

// WithSnapThreshold sets the sentence-boundary snap threshold as a fraction
// of the nominal window size. Values outside (0,1] are ignored.
func WithSnapThreshold(f float64) Option {
	return func(c *Chunker) {
		if f > 0 && f <= 1 {
			c.snapThreshold = f
		}
	}
}

// New creates a chunker. An overlap that meets or exceeds the chunk size is
// a non-positive stride and fails fast with domain.ErrInvalidChunking.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize:     DefaultChunkSize,
		overlap:       DefaultOverlap,
		charsPerToken: DefaultCharsPerToken,
		snapThreshold: DefaultSnapThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.overlap >= c.chunkSize {
		return nil, fmt.Errorf("overlap %d >= chunk size %d: %w",
			c.overlap, c.chunkSize, domain.ErrInvalidChunking)
	}

	return c, nil
}

// Chunk splits text into ordered chunks carrying the given metadata.
// Empty or whitespace-only input yields an empty chunk list. The final
// partial window is emitted even when shorter than the chunk size.
func (c *Chunker) Chunk(text string, metadata map[string]any) ([]domain.Chunk, error) {
	norm := Normalize(text)
	if norm == "" {
		return nil, nil
	}

	if c.tokenizer != nil {
		return c.chunkTokens(norm, metadata), nil
	}
	return c.chunkChars(norm, metadata), nil
}

// chunkTokens windows in token space and decodes each window to text.
func (c *Chunker) chunkTokens(text string, metadata map[string]any) []domain.Chunk {
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.chunkSize - c.overlap
	estimated := len(tokens)/stride + 1
	chunks := make([]domain.Chunk, 0, estimated)

	for start := 0; start < len(tokens); start += stride {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			ChunkIndex: len(chunks),
			Content:    c.tokenizer.Decode(window),
			TokenCount: len(window),
			Metadata:   copyMetadata(metadata),
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}

// chunkChars windows in character space using the chars-per-token heuristic,
// snapping window ends back to the nearest preceding sentence boundary when
// that boundary falls within snapThreshold of the nominal window size.
// Offsets are counted in runes so a window never splits a multi-byte
// character.
func (c *Chunker) chunkChars(text string, metadata map[string]any) []domain.Chunk {
	runes := []rune(text)
	windowChars := c.chunkSize * c.charsPerToken
	overlapChars := c.overlap * c.charsPerToken
	strideChars := windowChars - overlapChars

	estimated := len(runes)/strideChars + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	for start < len(runes) {
		end := start + windowChars
		if end > len(runes) {
			end = len(runes)
		} else if cut := lastSentenceCut(runes[start:end]); cut >= 0 &&
			float64(cut) >= c.snapThreshold*float64(windowChars) {
			end = start + cut
		}

		length := end - start
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			ChunkIndex: len(chunks),
			Content:    string(runes[start:end]),
			TokenCount: (length + c.charsPerToken - 1) / c.charsPerToken,
			Metadata:   copyMetadata(metadata),
		})

		if end == len(runes) {
			break
		}

		next := end - overlapChars
		if next <= start {
			// Guard against a snapped window shorter than the overlap.
			next = start + strideChars
		}
		start = next
	}

	return chunks
}

// lastSentenceCut returns the rune offset just past the last ". " in the
// window, keeping the period and space with the current chunk, or -1 when
// the window holds no sentence boundary.
func lastSentenceCut(window []rune) int {
	for i := len(window) - 1; i >= 1; i-- {
		if window[i-1] == '.' && window[i] == ' ' {
			return i + 1
		}
	}
	return -1
}

// Normalize collapses consecutive whitespace and newlines into single
// spaces and trims the result.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
