package domain

import "time"

// DocumentFormat identifies the declared format of uploaded bytes.
type DocumentFormat string

// Supported ingestion formats.
const (
	FormatPDF      DocumentFormat = "pdf"
	FormatDOCX     DocumentFormat = "docx"
	FormatDOC      DocumentFormat = "doc"
	FormatText     DocumentFormat = "txt"
	FormatMarkdown DocumentFormat = "md"
)

// IngestStatus tracks the lifecycle of a document through the pipeline.
type IngestStatus string

const (
	// StatusPending means the document row exists but chunks are not indexed yet.
	StatusPending IngestStatus = "pending"

	// StatusComplete means extraction, chunking and indexing all succeeded.
	StatusComplete IngestStatus = "complete"

	// StatusFailed means ingestion aborted; Error on the document says where.
	StatusFailed IngestStatus = "failed"
)

// RawDocument is the ingestion input: raw bytes plus a declared format.
type RawDocument struct {
	// DocumentID is assigned by the caller and owns the resulting chunks.
	DocumentID int64

	// Filename is the original upload name, used for titles and logging.
	Filename string

	// Format is the declared format. An unsupported value fails closed.
	Format DocumentFormat

	// Content is the raw file bytes.
	Content []byte

	// Metadata is propagated onto every chunk produced from this document.
	Metadata map[string]any
}

// ExtractResult is the output of format extraction: normalized text plus
// the basic structure counts surfaced to callers.
type ExtractResult struct {
	Text           string
	Title          string
	PageCount      int
	ParagraphCount int
}

// Document represents an ingested document and its source metadata.
type Document struct {
	ID             int64
	Filename       string
	Format         DocumentFormat
	Status         IngestStatus
	PageCount      int
	ParagraphCount int
	ChunkCount     int

	// Error holds the stage-tagged failure detail when Status is failed.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is the unit of embedding and retrieval. Chunks are immutable once
// created; re-ingesting a document replaces its chunk set.
type Chunk struct {
	// ID is the unique row identifier.
	ID string

	// DocumentID links to the owning document.
	DocumentID int64

	// ChunkIndex is the 0-based, contiguous position within the document.
	ChunkIndex int

	// Content is the chunk text.
	Content string

	// TokenCount is the token length of Content (exact in token mode,
	// estimated in character mode).
	TokenCount int

	// Embedding is the vector representation, present once indexed.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// ChunkEmbedding pairs a chunk identity with a freshly computed vector.
// Used by the batched rebuild path.
type ChunkEmbedding struct {
	DocumentID int64
	ChunkIndex int
	Embedding  []float32
}
