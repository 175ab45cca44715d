// Package sqlite provides the embedded vector store backend: chunk rows and
// embedding blobs live in a local SQLite database, with an in-process HNSW
// index as the nearest-neighbour candidate generator. The database is the
// source of truth; the index is rebuilt from it on open and after deletes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	surface "github.com/kshard/vector"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default HNSW construction and search parameters.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 100
)

// candidateFactor is how many extra HNSW candidates are fetched per
// requested result to survive threshold and document filtering.
const candidateFactor = 4

// Config holds configuration for the embedded store.
type Config struct {
	// Path is the database file location. Empty defaults to
	// ~/.corpus/data/vectors.db.
	Path string

	// Dimensions is the embedding vector size. Required.
	Dimensions int

	// M, EfConstruction and EfSearch tune the HNSW index.
	M              int
	EfConstruction int
	EfSearch       int
}

// chunkRef identifies a chunk within its document.
type chunkRef struct {
	documentID int64
	chunkIndex int
}

// Store is the embedded SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
	dims int

	m              int
	efConstruction int
	efSearch       int

	mu       sync.RWMutex
	closed   bool
	index    *hnsw.HNSW[vector.VF32]
	keyToRef map[uint32]chunkRef
	nextKey  uint32
}

// NewStore opens (or creates) the embedded store and rebuilds the HNSW
// index from the persisted rows.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: %w", domain.ErrInvalidInput)
	}
	if cfg.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		cfg.Path = filepath.Join(home, ".corpus", "data", "vectors.db")
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

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:             db,
		path:           cfg.Path,
		dims:           cfg.Dimensions,
		m:              cfg.M,
		efConstruction: cfg.EfConstruction,
		efSearch:       cfg.EfSearch,
		keyToRef:       make(map[uint32]chunkRef),
		nextKey:        1,
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	if err := s.rebuildIndex(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("building index: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			embedding BLOB,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(document_id, chunk_index)
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	`)
	return err
}

// Add replaces a document's chunk set in one transaction. The previous
// rows are deleted first so a re-ingest that produces fewer chunks leaves
// no stale tail behind.
func (s *Store) Add(ctx context.Context, documentID int64, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
		"DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, token_count, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
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

		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.ChunkIndex,
			chunk.Content, chunk.TokenCount, float32SliceToBytes(chunk.Embedding),
			string(metadataJSON)); err != nil {
			return fmt.Errorf("saving chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	// Index after commit so a failed transaction never leaves vectors
	// searchable.
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		s.indexVector(chunkRef{documentID, chunk.ChunkIndex}, chunk.Embedding)
	}

	logger.Debug("sqlite store: added %d chunks for document %d", len(chunks), documentID)
	return nil
}

// Search returns ranked nearest neighbours. With a document filter the scan
// is exact over that document's rows; otherwise the HNSW index proposes
// candidates that are re-scored against the stored vectors.
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

	// Exact scan when filtering by document or when the index has nothing
	// to propose; HNSW candidates otherwise.
	var rows []storedVector
	var err error
	if opts.DocumentID != nil || s.index == nil || len(s.keyToRef) == 0 {
		rows, err = s.fetchVectors(ctx, opts.DocumentID)
	} else {
		rows, err = s.fetchCandidates(ctx, query, opts.K)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(rows))
	for _, row := range rows {
		similarity := clampedCosine(query, row.embedding)
		if similarity < opts.MinSimilarity {
			continue
		}
		results = append(results, domain.SearchResult{
			Content:    row.content,
			DocumentID: row.documentID,
			ChunkIndex: row.chunkIndex,
			Similarity: similarity,
		})
	}

	// Descending similarity, ties by ascending chunk index.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if len(results) > opts.K {
		results = results[:opts.K]
	}
	return results, nil
}

// Delete removes all vectors for a document and rebuilds the index so
// deleted chunks stop proposing candidates.
func (s *Store) Delete(ctx context.Context, documentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := s.rebuildIndexLocked(ctx); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	logger.Debug("sqlite store: deleted document %d", documentID)
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
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embedding []byte
		var metadataJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.TokenCount, &embedding, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embedding)
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
// transaction, then rebuilds the index over the new vectors.
func (s *Store) UpdateEmbeddings(ctx context.Context, updates []domain.ChunkEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE chunks SET embedding = ? WHERE document_id = ? AND chunk_index = ?
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
		if _, err := stmt.ExecContext(ctx, float32SliceToBytes(update.Embedding),
			update.DocumentID, update.ChunkIndex); err != nil {
			return fmt.Errorf("updating chunk %d/%d: %w", update.DocumentID, update.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return s.rebuildIndexLocked(ctx)
}

// storedVector is a chunk row with its decoded embedding.
type storedVector struct {
	documentID int64
	chunkIndex int
	content    string
	embedding  []float32
}

// fetchVectors loads all embedded rows, optionally for one document.
func (s *Store) fetchVectors(ctx context.Context, documentID *int64) ([]storedVector, error) {
	query := `
		SELECT document_id, chunk_index, content, embedding
		FROM chunks WHERE embedding IS NOT NULL
	`
	args := []any{}
	if documentID != nil {
		query += " AND document_id = ?"
		args = append(args, *documentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVectors(rows)
}

// fetchCandidates asks the HNSW index for nearest candidates and loads
// their rows. Stale index entries that no longer exist in the database are
// dropped here.
func (s *Store) fetchCandidates(ctx context.Context, query []float32, k int) ([]storedVector, error) {
	neighbors := s.index.Search(vector.VF32{Key: 0, Vec: query}, k*candidateFactor, s.efSearch)

	seen := make(map[chunkRef]bool, len(neighbors))
	var vectors []storedVector
	for _, neighbor := range neighbors {
		ref, ok := s.keyToRef[neighbor.Key]
		if !ok || seen[ref] {
			continue
		}
		seen[ref] = true

		row := s.db.QueryRowContext(ctx, `
			SELECT document_id, chunk_index, content, embedding
			FROM chunks
			WHERE document_id = ? AND chunk_index = ? AND embedding IS NOT NULL
		`, ref.documentID, ref.chunkIndex)

		var v storedVector
		var blob []byte
		if err := row.Scan(&v.documentID, &v.chunkIndex, &v.content, &blob); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		v.embedding = bytesToFloat32Slice(blob)
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// indexVector registers a vector in the HNSW index under a fresh key.
func (s *Store) indexVector(ref chunkRef, embedding []float32) {
	key := s.nextKey
	s.nextKey++
	s.keyToRef[key] = ref
	s.index.Insert(vector.VF32{Key: key, Vec: embedding})
}

// rebuildIndex rebuilds the in-memory index from the database.
func (s *Store) rebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildIndexLocked(ctx)
}

func (s *Store) rebuildIndexLocked(ctx context.Context) error {
	s.index = hnsw.New(
		vector.SurfaceVF32(surface.Cosine()),
		hnsw.WithM(s.m),
		hnsw.WithEfConstruction(s.efConstruction),
	)
	s.keyToRef = make(map[uint32]chunkRef)
	s.nextKey = 1

	vectors, err := s.fetchVectors(ctx, nil)
	if err != nil {
		return err
	}
	for _, v := range vectors {
		s.indexVector(chunkRef{v.documentID, v.chunkIndex}, v.embedding)
	}

	logger.Debug("sqlite store: index rebuilt with %d vectors", len(vectors))
	return nil
}

func scanVectors(rows *sql.Rows) ([]storedVector, error) {
	var vectors []storedVector //nolint:prealloc // size unknown from query
	for rows.Next() {
		var v storedVector
		var blob []byte
		if err := rows.Scan(&v.documentID, &v.chunkIndex, &v.content, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		v.embedding = bytesToFloat32Slice(blob)
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector rows: %w", err)
	}
	return vectors, nil
}

// clampedCosine computes cosine similarity clamped to [0,1].
func clampedCosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// float32SliceToBytes converts a float32 slice to a little-endian blob.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
