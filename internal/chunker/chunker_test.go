package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/archivemind/corpus/internal/core/domain"
)

// wordTokenizer is a test tokenizer that treats each space-separated word
// as one token.
type wordTokenizer struct {
	words map[int]string
	ids   map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{
		words: make(map[int]string),
		ids:   make(map[string]int),
	}
}

func (w *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, 0, len(fields))
	for _, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.ids)
			w.ids[f] = id
			w.words[id] = f
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (w *wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = w.words[tok]
	}
	return strings.Join(parts, " ")
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
	}
	return strings.Join(parts, " ")
}

func TestNew_InvalidOverlap(t *testing.T) {
	_, err := New(WithChunkSize(50), WithOverlap(50))
	if !errors.Is(err, domain.ErrInvalidChunking) {
		t.Fatalf("expected ErrInvalidChunking, got %v", err)
	}

	_, err = New(WithChunkSize(50), WithOverlap(60))
	if !errors.Is(err, domain.ErrInvalidChunking) {
		t.Fatalf("expected ErrInvalidChunking, got %v", err)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, input := range []string{"", "   ", "\n\t \n"} {
		chunks, err := c.Chunk(input, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("input %q: expected 0 chunks, got %d", input, len(chunks))
		}
	}
}

func TestChunk_TokenMode_Count(t *testing.T) {
	// 100 tokens, size 50, overlap 10: ceil((100-10)/(50-10)) = 3 chunks.
	tok := newWordTokenizer()
	c, err := New(WithChunkSize(50), WithOverlap(10), WithTokenizer(tok))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := c.Chunk(words(100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if chunks[0].TokenCount != 50 || chunks[1].TokenCount != 50 {
		t.Errorf("expected full windows of 50 tokens, got %d and %d",
			chunks[0].TokenCount, chunks[1].TokenCount)
	}
	// Final partial window: tokens 80..100.
	if chunks[2].TokenCount != 20 {
		t.Errorf("expected final partial window of 20 tokens, got %d", chunks[2].TokenCount)
	}
}

func TestChunk_TokenMode_Contiguity(t *testing.T) {
	tok := newWordTokenizer()
	c, err := New(WithChunkSize(10), WithOverlap(2), WithTokenizer(tok))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := c.Chunk(words(57), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, chunk.ChunkIndex)
		}
	}
}

func TestChunk_TokenMode_RoundTrip(t *testing.T) {
	tok := newWordTokenizer()
	overlap := 4
	c, err := New(WithChunkSize(16), WithOverlap(overlap), WithTokenizer(tok))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := words(100)
	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// De-overlap: keep the first chunk whole, drop the leading overlap
	// tokens from every subsequent chunk.
	var rebuilt []int
	for i, chunk := range chunks {
		tokens := tok.Encode(chunk.Content)
		if i > 0 {
			tokens = tokens[overlap:]
		}
		rebuilt = append(rebuilt, tokens...)
	}

	if got := tok.Decode(rebuilt); got != Normalize(text) {
		t.Errorf("round trip mismatch:\ngot  %q\nwant %q", got, Normalize(text))
	}
}

func TestChunk_CharMode_RoundTrip(t *testing.T) {
	// No sentence boundaries, so no snapping interferes.
	c, err := New(WithChunkSize(20), WithOverlap(5), WithCharsPerToken(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := words(120)
	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	overlapChars := 5 * 4
	var sb strings.Builder
	for i, chunk := range chunks {
		content := chunk.Content
		if i > 0 {
			content = content[overlapChars:]
		}
		sb.WriteString(content)
	}

	if sb.String() != Normalize(text) {
		t.Errorf("round trip mismatch:\ngot  %q\nwant %q", sb.String(), Normalize(text))
	}
}

func TestChunk_CharMode_MultiByteSafe(t *testing.T) {
	// Windows count runes, not bytes, so a boundary never lands inside a
	// multi-byte character.
	text := strings.Repeat("é", 100)

	c, err := New(WithChunkSize(5), WithOverlap(1), WithCharsPerToken(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	overlapRunes := 1 * 3
	var sb strings.Builder
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk.Content) {
			t.Errorf("chunk %d content is invalid UTF-8: %q", i, chunk.Content)
		}
		runes := []rune(chunk.Content)
		if i > 0 {
			runes = runes[overlapRunes:]
		}
		sb.WriteString(string(runes))
	}

	if got := utf8.RuneCountInString(chunks[0].Content); got != 15 {
		t.Errorf("expected a full 15-rune first window, got %d runes", got)
	}
	if sb.String() != text {
		t.Errorf("round trip mismatch over multi-byte text")
	}
}

func TestChunk_CharMode_SentenceSnap(t *testing.T) {
	// Window is 40 chars (10 tokens * 4 chars). A sentence boundary at 80%
	// of the window should snap the cut there.
	sentence := strings.Repeat("a", 30) + ". "
	text := sentence + strings.Repeat("b", 60)

	c, err := New(WithChunkSize(10), WithOverlap(0), WithCharsPerToken(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(chunks[0].Content, ". ") {
		t.Errorf("expected first chunk to end at sentence boundary, got %q", chunks[0].Content)
	}
	if len(chunks[0].Content) != 32 {
		t.Errorf("expected snap at 32 chars, got %d", len(chunks[0].Content))
	}
}

func TestChunk_CharMode_NoSnapBelowThreshold(t *testing.T) {
	// Boundary at 10% of the window stays ignored; the cut is the full
	// window size.
	text := "ab. " + strings.Repeat("c", 100)

	c, err := New(WithChunkSize(10), WithOverlap(0), WithCharsPerToken(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks[0].Content) != 40 {
		t.Errorf("expected full 40-char window, got %d chars", len(chunks[0].Content))
	}
}

func TestChunk_MetadataCopied(t *testing.T) {
	c, err := New(WithChunkSize(10), WithOverlap(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta := map[string]any{"filename": "notes.txt"}
	chunks, err := c.Chunk(words(80), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	chunks[0].Metadata["filename"] = "mutated"
	if chunks[1].Metadata["filename"] != "notes.txt" {
		t.Error("metadata map shared between chunks")
	}
	if meta["filename"] != "notes.txt" {
		t.Error("caller metadata mutated")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  hello\n\nworld\t foo  ")
	if got != "hello world foo" {
		t.Errorf("Normalize = %q", got)
	}
}
