package driven

import (
	"context"

	"github.com/archivemind/corpus/internal/core/domain"
)

// DocumentStore persists document rows and their ingestion status.
// The document lifecycle owns the chunk lifecycle: deleting a document must
// be followed by VectorStore.Delete so no orphaned vectors remain.
type DocumentStore interface {
	// SaveDocument stores or updates a document row.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// ListDocuments returns all document rows.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document row.
	DeleteDocument(ctx context.Context, id int64) error

	// Close releases resources.
	Close() error
}
