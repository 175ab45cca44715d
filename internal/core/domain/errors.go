package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates the declared document format has no
	// registered extractor. Ingestion fails closed on it.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the source bytes were unreadable or
	// corrupt. Extraction errors abort ingestion of that document.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrInvalidChunking indicates a chunker misconfiguration, such as an
	// overlap that meets or exceeds the chunk size (non-positive stride).
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrEmbeddingUnavailable indicates the embedding model could not be
	// reached or failed to encode. Never degraded to a zero vector.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates a vector store connectivity or write
	// failure. Search failures propagate rather than returning empty so
	// callers can tell "no matches" from "search failed".
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the store's configured embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)
