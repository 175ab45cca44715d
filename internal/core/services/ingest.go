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

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// ExtractorRegistry resolves an extractor for a document format.
type ExtractorRegistry interface {
	Get(format domain.DocumentFormat) (driven.Extractor, error)
}

// IngestService runs the ingestion pipeline: extract, chunk, embed, index.
type IngestService struct {
	registry ExtractorRegistry
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	vectors  driven.VectorStore
	docs     driven.DocumentStore
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	registry ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	docs driven.DocumentStore,
) *IngestService {
	return &IngestService{
		registry: registry,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		docs:     docs,
	}
}

// Ingest processes one document end to end. The document row is written
// before the pipeline starts and updated with the outcome, so failed
// ingestions stay visible with a stage-tagged error.
func (s *IngestService) Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	logger.Section("Document Ingestion")

	if raw == nil || len(raw.Content) == 0 {
		return nil, fmt.Errorf("empty document content: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(raw.Filename) == "" {
		return nil, fmt.Errorf("filename is required: %w", domain.ErrInvalidInput)
	}

	extractor, err := s.registry.Get(raw.Format)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:       raw.DocumentID,
		Filename: raw.Filename,
		Format:   raw.Format,
		Status:   domain.StatusPending,
	}
	if doc.ID != 0 {
		// Re-ingest: keep the existing row's creation time.
		if existing, err := s.docs.GetDocument(ctx, doc.ID); err == nil {
			doc.CreatedAt = existing.CreatedAt
		}
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	logger.Info("Ingesting %q (document %d, format %s)", doc.Filename, doc.ID, doc.Format)

	result, err := extractor.Extract(ctx, raw)
	if err != nil {
		return doc, s.fail(ctx, doc, "extract", err)
	}
	doc.PageCount = result.PageCount
	doc.ParagraphCount = result.ParagraphCount
	logger.Debug("Extracted %d pages, %d paragraphs", result.PageCount, result.ParagraphCount)

	chunks, err := s.chunker.Chunk(result.Text, chunkMetadata(raw.Metadata, result.Title))
	if err != nil {
		return doc, s.fail(ctx, doc, "chunk", err)
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	logger.Debug("Produced %d chunks", len(chunks))

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return doc, s.fail(ctx, doc, "embed", err)
		}
		for i := range chunks {
			chunks[i].Embedding = embeddings[i]
		}

		if err := s.vectors.Add(ctx, doc.ID, chunks); err != nil {
			return doc, s.fail(ctx, doc, "index", err)
		}
	}

	doc.Status = domain.StatusComplete
	doc.ChunkCount = len(chunks)
	doc.Error = ""
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return doc, fmt.Errorf("saving document: %w", err)
	}

	logger.Info("Ingested %q: %d chunks indexed", doc.Filename, doc.ChunkCount)
	return doc, nil
}

// chunkMetadata merges the extracted title into the caller's metadata.
// A caller-supplied title wins.
func chunkMetadata(metadata map[string]any, title string) map[string]any {
	if title == "" {
		return metadata
	}
	if existing, ok := metadata["title"].(string); ok && existing != "" {
		return metadata
	}
	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["title"] = title
	return merged
}

// fail records a stage-tagged failure on the document row and returns the
// wrapped error. The row update is best-effort; the pipeline error wins.
func (s *IngestService) fail(ctx context.Context, doc *domain.Document, stage string, err error) error {
	wrapped := fmt.Errorf("%s: %w", stage, err)

	doc.Status = domain.StatusFailed
	doc.Error = wrapped.Error()
	if saveErr := s.docs.SaveDocument(ctx, doc); saveErr != nil {
		logger.Warn("Failed to record ingestion failure for document %d: %v", doc.ID, saveErr)
	}

	return fmt.Errorf("ingesting document %d: %w", doc.ID, wrapped)
}

// Delete removes a document row and all of its vectors. The vectors go
// first so a partial failure cannot leave orphaned chunks behind a missing
// document.
func (s *IngestService) Delete(ctx context.Context, documentID int64) error {
	if _, err := s.docs.GetDocument(ctx, documentID); err != nil {
		return err
	}

	if err := s.vectors.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}

	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	logger.Info("Deleted document %d", documentID)
	return nil
}

// Stats reports the current contents of the vector store.
func (s *IngestService) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return s.vectors.Stats(ctx)
}
