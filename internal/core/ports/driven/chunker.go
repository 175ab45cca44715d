package driven

import "github.com/archivemind/corpus/internal/core/domain"

// Chunker splits normalized text into ordered, overlapping windows.
// Implementations must emit a contiguous 0-based ChunkIndex sequence and
// include the final partial window even when shorter than the chunk size.
type Chunker interface {
	// Chunk splits text into chunks carrying the given metadata.
	// Empty or whitespace-only input yields an empty list and no error.
	Chunk(text string, metadata map[string]any) ([]domain.Chunk, error)
}
