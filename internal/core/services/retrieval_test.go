package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/graph"
)

// searchStore returns canned search results and records rebuild traffic.
type searchStore struct {
	*fakeVectorStore

	results    []domain.SearchResult
	searchErr  error
	lastOpts   domain.SearchOptions
	chunks     []domain.Chunk
	listCalls  []int
	updates    [][]domain.ChunkEmbedding
	updateErr  error
	failAtCall int // 1-based ListChunks call that errors; 0 disables
}

func newSearchStore() *searchStore {
	return &searchStore{fakeVectorStore: newFakeVectorStore()}
}

func (s *searchStore) Search(_ context.Context, _ []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	s.lastOpts = opts
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *searchStore) ListChunks(_ context.Context, offset, limit int) ([]domain.Chunk, error) {
	s.listCalls = append(s.listCalls, offset)
	if s.failAtCall > 0 && len(s.listCalls) == s.failAtCall {
		return nil, errors.New("store went away")
	}
	if offset >= len(s.chunks) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.chunks) {
		end = len(s.chunks)
	}
	return s.chunks[offset:end], nil
}

func (s *searchStore) UpdateEmbeddings(_ context.Context, updates []domain.ChunkEmbedding) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, updates)
	return nil
}

func TestSearch_EmptyQueryReturnsEmpty(t *testing.T) {
	store := newSearchStore()
	embedder := &fakeEmbedder{}
	svc := NewRetrievalService(embedder, store, nil)

	results, err := svc.Search(context.Background(), "   ", domain.SearchOptions{K: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, embedder.calls, "empty query must not reach the embedder")
}

func TestSearch_DefaultsK(t *testing.T) {
	store := newSearchStore()
	svc := NewRetrievalService(&fakeEmbedder{}, store, nil)

	_, err := svc.Search(context.Background(), "anything", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10, store.lastOpts.K)
}

func TestSearch_PropagatesResults(t *testing.T) {
	store := newSearchStore()
	store.results = []domain.SearchResult{
		{Content: "best match", DocumentID: 1, ChunkIndex: 0, Similarity: 0.92},
		{Content: "runner up", DocumentID: 2, ChunkIndex: 3, Similarity: 0.74},
	}
	svc := NewRetrievalService(&fakeEmbedder{}, store, nil)

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{K: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "best match", results[0].Content)
}

func TestSearch_EmbedderFailure(t *testing.T) {
	store := newSearchStore()
	embedder := &fakeEmbedder{err: fmt.Errorf("offline: %w", domain.ErrEmbeddingUnavailable)}
	svc := NewRetrievalService(embedder, store, nil)

	_, err := svc.Search(context.Background(), "query", domain.SearchOptions{K: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEnrichContext_WithExtractor(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, newSearchStore(), graph.NewExtractor())

	entities, relations := svc.EnrichContext(context.Background(),
		"Marie Curie met Albert Einstein. Marie Curie wrote to Albert Einstein.")
	require.Len(t, entities, 2)
	require.Len(t, relations, 1)
}

func TestEnrichContext_NoExtractorDegrades(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, newSearchStore(), nil)

	entities, relations := svc.EnrichContext(context.Background(), "Marie Curie. Marie Curie.")
	assert.Empty(t, entities)
	assert.Empty(t, relations)
}

func rebuildChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("chunk-%d", i),
			DocumentID: 1,
			ChunkIndex: i,
			Content:    fmt.Sprintf("content %d", i),
		}
	}
	return chunks
}

func TestRebuild_BatchesAllChunks(t *testing.T) {
	store := newSearchStore()
	store.chunks = rebuildChunks(5)
	embedder := &fakeEmbedder{}
	svc := NewRetrievalService(embedder, store, nil)

	total, err := svc.Rebuild(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	// Batches of 2, 2 and 1; each committed separately.
	require.Len(t, store.updates, 3)
	assert.Len(t, store.updates[0], 2)
	assert.Len(t, store.updates[2], 1)
	assert.Equal(t, 3, embedder.calls)

	// Updates carry the chunk identity, not the row ID.
	assert.Equal(t, int64(1), store.updates[0][0].DocumentID)
	assert.Equal(t, 0, store.updates[0][0].ChunkIndex)
	assert.NotEmpty(t, store.updates[0][0].Embedding)
}

func TestRebuild_EmptyStore(t *testing.T) {
	store := newSearchStore()
	svc := NewRetrievalService(&fakeEmbedder{}, store, nil)

	total, err := svc.Rebuild(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRebuild_MidRunFailureKeepsCommittedBatches(t *testing.T) {
	store := newSearchStore()
	store.chunks = rebuildChunks(4)
	store.failAtCall = 2
	svc := NewRetrievalService(&fakeEmbedder{}, store, nil)

	total, err := svc.Rebuild(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, 2, total, "first batch already committed")
	require.Len(t, store.updates, 1)
}

func TestRebuild_DefaultBatchSize(t *testing.T) {
	store := newSearchStore()
	store.chunks = rebuildChunks(3)
	svc := NewRetrievalService(&fakeEmbedder{}, store, nil)

	total, err := svc.Rebuild(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, store.updates, 1, "all chunks fit in one default-size batch")
}
