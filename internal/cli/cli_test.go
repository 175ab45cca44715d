package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivemind/corpus/internal/core/domain"
)

// stubIngest implements driving.IngestService for command tests.
type stubIngest struct {
	deleted []int64
}

func (s *stubIngest) Ingest(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	return &domain.Document{
		ID:         1,
		Filename:   raw.Filename,
		Format:     raw.Format,
		Status:     domain.StatusComplete,
		ChunkCount: 3,
		PageCount:  1,
	}, nil
}

func (s *stubIngest) Delete(_ context.Context, documentID int64) error {
	s.deleted = append(s.deleted, documentID)
	return nil
}

func (s *stubIngest) Stats(context.Context) (*domain.StoreStats, error) {
	return &domain.StoreStats{ChunkCount: 7, ChunksWithEmbeddings: 7, DocumentCount: 2}, nil
}

// stubRetrieval implements driving.RetrievalService for command tests.
type stubRetrieval struct {
	lastOpts domain.SearchOptions
}

func (s *stubRetrieval) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	s.lastOpts = opts
	return []domain.SearchResult{
		{Content: "mock result content", DocumentID: 1, ChunkIndex: 0, Similarity: 0.87},
	}, nil
}

func (s *stubRetrieval) EnrichContext(context.Context, string) ([]domain.Entity, []domain.Relation) {
	return nil, nil
}

func (s *stubRetrieval) Rebuild(context.Context, int) (int, error) {
	return 7, nil
}

// setupTestServices injects stubs and returns a cleanup restoring nil.
func setupTestServices() (*stubIngest, *stubRetrieval, func()) {
	ingest := &stubIngest{}
	retrieval := &stubRetrieval{}
	SetServices(ingest, retrieval)
	return ingest, retrieval, func() {
		SetServices(nil, nil)
	}
}

func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "test query")
	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "mock result content")
}

func TestSearchCmd_PassesOptions(t *testing.T) {
	_, retrieval, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("search", "--limit", "25", "--document", "9", "--min-similarity", "0.4", "query")
	require.NoError(t, err)

	assert.Equal(t, 25, retrieval.lastOpts.K)
	require.NotNil(t, retrieval.lastOpts.DocumentID)
	assert.Equal(t, int64(9), *retrieval.lastOpts.DocumentID)
	assert.InDelta(t, 0.4, retrieval.lastOpts.MinSimilarity, 1e-9)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "--json", "query")
	require.NoError(t, err)
	assert.Contains(t, out, `"similarity"`)
	assert.Contains(t, out, "mock result content")
}

func TestDeleteCmd_ParsesID(t *testing.T) {
	ingest, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("delete", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document 42")
	assert.Equal(t, []int64{42}, ingest.deleted)
}

func TestDeleteCmd_RejectsNonNumericID(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("delete", "not-a-number")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document ID")
}

func TestStatsCmd_Table(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 2")
	assert.Contains(t, out, "Chunks:    7")
}

func TestRebuildCmd_ReportsTotal(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "Re-embedded 7 chunks")
}

func TestVersionCmd(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("version")
	require.NoError(t, err)
	assert.Contains(t, out, "corpus version")
}
