package driving

import (
	"context"

	"github.com/archivemind/corpus/internal/core/domain"
)

// IngestService turns uploaded documents into searchable chunks.
// Used by CLI and any future transport adapters.
type IngestService interface {
	// Ingest runs extraction, chunking, embedding and indexing for one
	// document. Failures identify the document and the stage that failed.
	Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)

	// Delete removes a document row and all of its vectors.
	Delete(ctx context.Context, documentID int64) error

	// Stats reports the current contents of the vector store.
	Stats(ctx context.Context) (*domain.StoreStats, error)
}
