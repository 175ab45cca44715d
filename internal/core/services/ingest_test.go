package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
)

// ==================== Fakes ====================

type fakeExtractor struct {
	result *domain.ExtractResult
	err    error
}

func (f *fakeExtractor) Formats() []domain.DocumentFormat {
	return []domain.DocumentFormat{domain.FormatText}
}

func (f *fakeExtractor) Extract(context.Context, *domain.RawDocument) (*domain.ExtractResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRegistry struct {
	extractor driven.Extractor
}

func (f *fakeRegistry) Get(format domain.DocumentFormat) (driven.Extractor, error) {
	if f.extractor == nil {
		return nil, fmt.Errorf("no extractor for format %q: %w", format, domain.ErrUnsupportedFormat)
	}
	return f.extractor, nil
}

type fakeChunker struct {
	err error
}

// Chunk splits on sentences, one chunk per sentence.
func (f *fakeChunker) Chunk(text string, metadata map[string]any) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	var chunks []domain.Chunk
	for i, part := range strings.Split(text, ". ") {
		if part == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("chunk-%d", i),
			ChunkIndex: i,
			Content:    part,
			Metadata:   metadata,
		})
	}
	return chunks, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int            { return 3 }
func (f *fakeEmbedder) ModelName() string          { return "fake" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

type fakeVectorStore struct {
	added   map[int64][]domain.Chunk
	deleted []int64
	addErr  error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{added: make(map[int64][]domain.Chunk)}
}

func (f *fakeVectorStore) Add(_ context.Context, documentID int64, chunks []domain.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added[documentID] = chunks
	return nil
}

func (f *fakeVectorStore) Search(context.Context, []float32, domain.SearchOptions) ([]domain.SearchResult, error) {
	return nil, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, documentID int64) error {
	delete(f.added, documentID)
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeVectorStore) Stats(context.Context) (*domain.StoreStats, error) {
	total := 0
	for _, chunks := range f.added {
		total += len(chunks)
	}
	return &domain.StoreStats{
		ChunkCount:           total,
		ChunksWithEmbeddings: total,
		DocumentCount:        len(f.added),
	}, nil
}

func (f *fakeVectorStore) ListChunks(context.Context, int, int) ([]domain.Chunk, error) {
	return nil, nil
}

func (f *fakeVectorStore) UpdateEmbeddings(context.Context, []domain.ChunkEmbedding) error {
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

type fakeDocStore struct {
	docs   map[int64]*domain.Document
	nextID int64
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[int64]*domain.Document), nextID: 1}
}

func (f *fakeDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc.ID == 0 {
		doc.ID = f.nextID
		f.nextID++
	}
	saved := *doc
	f.docs[doc.ID] = &saved
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocStore) ListDocuments(context.Context) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id int64) error {
	if _, ok := f.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocStore) Close() error { return nil }

// ==================== Tests ====================

type ingestFixture struct {
	svc      *IngestService
	registry *fakeRegistry
	chunker  *fakeChunker
	embedder *fakeEmbedder
	vectors  *fakeVectorStore
	docs     *fakeDocStore
}

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		registry: &fakeRegistry{extractor: &fakeExtractor{
			result: &domain.ExtractResult{Text: "First fact. Second fact. Third fact", PageCount: 1, ParagraphCount: 3},
		}},
		chunker:  &fakeChunker{},
		embedder: &fakeEmbedder{},
		vectors:  newFakeVectorStore(),
		docs:     newFakeDocStore(),
	}
	f.svc = NewIngestService(f.registry, f.chunker, f.embedder, f.vectors, f.docs)
	return f
}

func textDoc(content string) *domain.RawDocument {
	return &domain.RawDocument{
		Filename: "notes.txt",
		Format:   domain.FormatText,
		Content:  []byte(content),
	}
}

func TestIngest_HappyPath(t *testing.T) {
	f := newIngestFixture()

	doc, err := f.svc.Ingest(context.Background(), textDoc("First fact. Second fact. Third fact"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusComplete, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, 3, doc.ParagraphCount)
	assert.Empty(t, doc.Error)

	indexed := f.vectors.added[doc.ID]
	require.Len(t, indexed, 3)
	for _, chunk := range indexed {
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.NotEmpty(t, chunk.Embedding)
	}

	saved, err := f.docs.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, saved.Status)
}

func TestIngest_TitleMergedIntoChunkMetadata(t *testing.T) {
	f := newIngestFixture()
	f.registry.extractor.(*fakeExtractor).result.Title = "Release Notes"

	doc, err := f.svc.Ingest(context.Background(), textDoc("First fact. Second fact"))
	require.NoError(t, err)

	indexed := f.vectors.added[doc.ID]
	require.NotEmpty(t, indexed)
	assert.Equal(t, "Release Notes", indexed[0].Metadata["title"])
}

func TestIngest_CallerTitleWins(t *testing.T) {
	f := newIngestFixture()
	f.registry.extractor.(*fakeExtractor).result.Title = "Derived"

	raw := textDoc("First fact. Second fact")
	raw.Metadata = map[string]any{"title": "Caller Title"}

	doc, err := f.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)

	indexed := f.vectors.added[doc.ID]
	require.NotEmpty(t, indexed)
	assert.Equal(t, "Caller Title", indexed[0].Metadata["title"])
}

func TestIngest_RejectsEmptyContent(t *testing.T) {
	f := newIngestFixture()

	_, err := f.svc.Ingest(context.Background(), textDoc(""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngest_UnsupportedFormatFailsClosed(t *testing.T) {
	f := newIngestFixture()
	f.registry.extractor = nil

	_, err := f.svc.Ingest(context.Background(), textDoc("some text"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Empty(t, f.docs.docs, "no document row for an unsupported format")
}

func TestIngest_ExtractFailureTagged(t *testing.T) {
	f := newIngestFixture()
	f.registry.extractor = &fakeExtractor{err: fmt.Errorf("corrupt bytes: %w", domain.ErrExtractionFailed)}

	doc, err := f.svc.Ingest(context.Background(), textDoc("not really text"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.Contains(t, err.Error(), "extract:")

	saved, getErr := f.docs.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, saved.Status)
	assert.Contains(t, saved.Error, "extract:")
}

func TestIngest_EmbedFailureTagged(t *testing.T) {
	f := newIngestFixture()
	f.embedder.err = errors.New("model offline")

	doc, err := f.svc.Ingest(context.Background(), textDoc("First fact. Second fact"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed:")

	saved, getErr := f.docs.GetDocument(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, saved.Status)
	assert.Empty(t, f.vectors.added, "nothing indexed on embed failure")
}

func TestIngest_IndexFailureTagged(t *testing.T) {
	f := newIngestFixture()
	f.vectors.addErr = errors.New("store unavailable")

	_, err := f.svc.Ingest(context.Background(), textDoc("First fact"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index:")
}

func TestIngest_ReingestKeepsDocumentID(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	doc, err := f.svc.Ingest(ctx, textDoc("First fact. Second fact"))
	require.NoError(t, err)

	raw := textDoc("First fact")
	raw.DocumentID = doc.ID
	again, err := f.svc.Ingest(ctx, raw)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, again.ID)
	assert.Len(t, f.docs.docs, 1)
}

func TestDelete_RemovesRowAndVectors(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	doc, err := f.svc.Ingest(ctx, textDoc("First fact. Second fact"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	assert.Contains(t, f.vectors.deleted, doc.ID)

	_, err = f.docs.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_MissingDocument(t *testing.T) {
	f := newIngestFixture()

	err := f.svc.Delete(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.vectors.deleted, "vectors untouched for unknown document")
}

func TestStats_DelegatesToStore(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, textDoc("First fact. Second fact"))
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, 1, stats.DocumentCount)
}
