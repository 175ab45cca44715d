package driving

import (
	"context"

	"github.com/archivemind/corpus/internal/core/domain"
)

// RetrievalService serves ranked nearest-neighbour search over indexed
// chunks, with optional entity/relation enrichment of retrieved context.
type RetrievalService interface {
	// Search embeds the query and returns ranked results.
	// An empty result list is a normal state, not an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// EnrichContext extracts entities and relations from retrieved text.
	// Enrichment is best-effort: failures degrade to empty lists.
	EnrichContext(ctx context.Context, text string) ([]domain.Entity, []domain.Relation)

	// Rebuild re-embeds all stored chunks in batches of batchSize, committing
	// after each batch so a mid-run failure loses only the in-flight batch.
	// Returns the number of chunks re-embedded.
	Rebuild(ctx context.Context, batchSize int) (int, error)
}
