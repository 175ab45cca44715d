package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/core/ports/driving"
	"github.com/archivemind/corpus/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// GraphExtractor derives entities and relations from text.
type GraphExtractor interface {
	Extract(text string) ([]domain.Entity, []domain.Relation)
}

// DefaultRebuildBatchSize bounds memory during a full re-embed.
const DefaultRebuildBatchSize = 64

// RetrievalService serves semantic search and context enrichment.
type RetrievalService struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorStore
	graph    GraphExtractor
}

// NewRetrievalService creates a new retrieval service. The graph extractor
// is optional; without one, EnrichContext returns empty lists.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	graph GraphExtractor,
) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		vectors:  vectors,
		graph:    graph,
	}
}

// Search embeds the query and returns ranked nearest neighbours.
func (s *RetrievalService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	if opts.K <= 0 {
		opts.K = 10
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.vectors.Search(ctx, embedding, opts)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	logger.Info("Search returned %d results", len(results))
	return results, nil
}

// EnrichContext extracts entities and relations from retrieved text.
// Best-effort: a missing extractor or empty text degrades to empty lists.
func (s *RetrievalService) EnrichContext(_ context.Context, text string) ([]domain.Entity, []domain.Relation) {
	if s.graph == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return s.graph.Extract(text)
}

// Rebuild re-embeds every stored chunk in batches, committing after each
// batch. A mid-run failure loses only the in-flight batch; re-running
// resumes over all chunks and converges.
func (s *RetrievalService) Rebuild(ctx context.Context, batchSize int) (int, error) {
	logger.Section("Embedding Rebuild")

	if batchSize <= 0 {
		batchSize = DefaultRebuildBatchSize
	}

	total := 0
	for offset := 0; ; {
		chunks, err := s.vectors.ListChunks(ctx, offset, batchSize)
		if err != nil {
			return total, fmt.Errorf("listing chunks at offset %d: %w", offset, err)
		}
		if len(chunks) == 0 {
			break
		}

		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("re-embedding batch at offset %d: %w", offset, err)
		}

		updates := make([]domain.ChunkEmbedding, len(chunks))
		for i, chunk := range chunks {
			updates[i] = domain.ChunkEmbedding{
				DocumentID: chunk.DocumentID,
				ChunkIndex: chunk.ChunkIndex,
				Embedding:  embeddings[i],
			}
		}

		if err := s.vectors.UpdateEmbeddings(ctx, updates); err != nil {
			return total, fmt.Errorf("committing batch at offset %d: %w", offset, err)
		}

		total += len(chunks)
		offset += len(chunks)
		logger.Debug("Rebuilt %d chunks so far", total)

		if len(chunks) < batchSize {
			break
		}
	}

	logger.Info("Rebuild complete: %d chunks re-embedded", total)
	return total, nil
}
