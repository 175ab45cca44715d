// Package postgres provides the relational vector store backend on
// PostgreSQL with the pgvector extension. Similarity search runs server-side
// in one round trip using the cosine distance operator and an HNSW index.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/pgvector/pgvector-go"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default HNSW index parameters.
const (
	DefaultM              = 16
	DefaultEfConstruction = 64
	DefaultEfSearch       = 100
)

// Config holds configuration for the PostgreSQL store.
type Config struct {
	// DSN is the PostgreSQL connection string. Required.
	DSN string

	// Dimensions is the embedding vector size. Required; the column type is
	// fixed at creation.
	Dimensions int

	// M, EfConstruction and EfSearch tune the HNSW index.
	M              int
	EfConstruction int
	EfSearch       int
}

// Store is the PostgreSQL-backed vector store.
type Store struct {
	db       *sql.DB
	dims     int
	efSearch int

	mu     sync.RWMutex
	closed bool
}

// NewStore connects to PostgreSQL, enables the vector extension and ensures
// the schema exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: %w", domain.ErrInvalidInput)
	}
	if cfg.M <= 0 {
		cfg.M = DefaultM
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultEfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultEfSearch
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	s := &Store{
		db:       db,
		dims:     cfg.Dimensions,
		efSearch: cfg.EfSearch,
	}

	if err := s.createSchema(ctx, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context, cfg Config) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enabling vector extension: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id BIGINT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d),
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_id, chunk_index)
		)
	`, cfg.Dimensions)); err != nil {
		return fmt.Errorf("creating chunks table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id)"); err != nil {
		return fmt.Errorf("creating document index: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
		USING hnsw (embedding vector_cosine_ops)
		WITH (m = %d, ef_construction = %d)
	`, cfg.M, cfg.EfConstruction)); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}

	return nil
}

// Add replaces a document's chunk set in one transaction. The previous
// rows are deleted first so a re-ingest that produces fewer chunks leaves
// no stale tail behind.
func (s *Store) Add(ctx context.Context, documentID int64, chunks []domain.Chunk) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 && len(chunk.Embedding) != s.dims {
			return fmt.Errorf("chunk %d has %d dimensions, store expects %d: %w",
				chunk.ChunkIndex, len(chunk.Embedding), s.dims, domain.ErrDimensionMismatch)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, token_count, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		var embedding any
		if len(chunk.Embedding) > 0 {
			embedding = pgvector.NewVector(chunk.Embedding)
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.ChunkIndex,
			chunk.Content, chunk.TokenCount, embedding, string(metadataJSON)); err != nil {
			return fmt.Errorf("saving chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	logger.Debug("postgres store: added %d chunks for document %d", len(chunks), documentID)
	return nil
}

// Search ranks by cosine similarity server-side. Threshold, document filter
// and limit all apply in the query so only final results cross the wire.
func (s *Store) Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("query has %d dimensions, store expects %d: %w",
			len(query), s.dims, domain.ErrDimensionMismatch)
	}
	if opts.K <= 0 {
		opts.K = 10
	}

	// ef_search is transaction-scoped, so search runs inside one.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", s.efSearch)); err != nil {
		return nil, fmt.Errorf("setting ef_search: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT content, document_id, chunk_index,
			1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE embedding IS NOT NULL
	`)
	args := []any{pgvector.NewVector(query)}

	if opts.DocumentID != nil {
		args = append(args, *opts.DocumentID)
		fmt.Fprintf(&sb, " AND document_id = $%d", len(args))
	}
	if opts.MinSimilarity > 0 {
		args = append(args, opts.MinSimilarity)
		fmt.Fprintf(&sb, " AND 1 - (embedding <=> $1) >= $%d", len(args))
	}

	args = append(args, opts.K)
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1, chunk_index LIMIT $%d", len(args))

	rows, err := tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.Content, &r.DocumentID, &r.ChunkIndex, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if r.Similarity < 0 {
			r.Similarity = 0
		}
		if r.Similarity > 1 {
			r.Similarity = 1
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return results, nil
}

// Delete removes all chunks for a document.
func (s *Store) Delete(ctx context.Context, documentID int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	logger.Debug("postgres store: deleted document %d", documentID)
	return nil
}

// Stats reports chunk, embedded-chunk and document counts.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	var stats domain.StoreStats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(embedding), COUNT(DISTINCT document_id)
		FROM chunks
	`)
	if err := row.Scan(&stats.ChunkCount, &stats.ChunksWithEmbeddings, &stats.DocumentCount); err != nil {
		return nil, fmt.Errorf("scanning stats: %w", err)
	}
	return &stats, nil
}

// ListChunks pages through chunks in (document_id, chunk_index) order.
func (s *Store) ListChunks(ctx context.Context, offset, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, token_count, embedding, metadata
		FROM chunks
		ORDER BY document_id, chunk_index
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingRaw sql.NullString
		var metadataJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.TokenCount, &embeddingRaw, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if embeddingRaw.Valid && embeddingRaw.String != "" {
			var embedding pgvector.Vector
			if err := embedding.Scan(embeddingRaw.String); err != nil {
				return nil, fmt.Errorf("parsing chunk embedding: %w", err)
			}
			chunk.Embedding = embedding.Slice()
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// UpdateEmbeddings replaces embeddings for the given chunks in one
// transaction.
func (s *Store) UpdateEmbeddings(ctx context.Context, updates []domain.ChunkEmbedding) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE chunks SET embedding = $1 WHERE document_id = $2 AND chunk_index = $3
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, update := range updates {
		if len(update.Embedding) != s.dims {
			return fmt.Errorf("chunk %d/%d has %d dimensions, store expects %d: %w",
				update.DocumentID, update.ChunkIndex, len(update.Embedding), s.dims,
				domain.ErrDimensionMismatch)
		}
		if _, err := stmt.ExecContext(ctx, pgvector.NewVector(update.Embedding),
			update.DocumentID, update.ChunkIndex); err != nil {
			return fmt.Errorf("updating chunk %d/%d: %w", update.DocumentID, update.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
