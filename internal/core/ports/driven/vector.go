package driven

import (
	"context"

	"github.com/archivemind/corpus/internal/core/domain"
)

// VectorStore stores chunk embeddings and serves nearest-neighbour search.
// Two interchangeable implementations exist: an embedded sqlite store with
// an in-process HNSW index, and a Postgres store with pgvector. Both return
// the same result shape and similarity semantics (cosine, [0,1], higher is
// better) so callers are backend-agnostic.
type VectorStore interface {
	// Add replaces a document's chunk set. Re-adding swaps out the
	// previous set entirely, so a smaller set leaves no stale tail.
	// All-or-nothing: a failure leaves the previous set intact.
	Add(ctx context.Context, documentID int64, chunks []domain.Chunk) error

	// Search returns the nearest chunks to the query vector, ordered by
	// descending similarity with ties broken by ascending chunk index.
	// Results below opts.MinSimilarity are excluded outright.
	Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Delete removes all vectors for a document.
	Delete(ctx context.Context, documentID int64) error

	// Stats reports chunk, embedded-chunk and document counts.
	Stats(ctx context.Context) (*domain.StoreStats, error)

	// ListChunks pages through stored chunks in (document_id, chunk_index)
	// order. Used by the batched rebuild path.
	ListChunks(ctx context.Context, offset, limit int) ([]domain.Chunk, error)

	// UpdateEmbeddings replaces embeddings for the given chunks in one
	// transaction. Rebuild commits one batch per call so a mid-run failure
	// loses only the in-flight batch.
	UpdateEmbeddings(ctx context.Context, updates []domain.ChunkEmbedding) error

	// Close releases resources.
	Close() error
}
