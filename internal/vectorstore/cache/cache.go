// Package cache provides a TTL-bounded query result cache that wraps any
// vector store. Entries expire after a fixed lifetime and the cache is
// invalidated whenever the underlying store mutates.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default cache bounds.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 100
)

// entry is one cached result set with its insertion time.
type entry struct {
	results []domain.SearchResult
	addedAt time.Time
}

// Store wraps a vector store with a TTL query cache. Search results are
// cached by query vector and options; any write empties the cache.
type Store struct {
	inner   driven.VectorStore
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	order   []string // insertion order, oldest first
}

// Option configures the cache.
type Option func(*Store)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxSize sets the entry capacity.
func WithMaxSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a caching wrapper around inner.
func New(inner driven.VectorStore, opts ...Option) *Store {
	s := &Store{
		inner:   inner,
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search serves a cached result set when one is fresh, otherwise delegates
// and caches. Expired entries are dropped on access.
func (s *Store) Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	key := searchKey(query, opts)

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		if s.now().Sub(e.addedAt) < s.ttl {
			s.mu.Unlock()
			logger.Debug("query cache hit")
			// Copied so a caller mutating its results cannot corrupt the
			// cached set for later hits.
			return cloneResults(e.results), nil
		}
		s.evict(key)
	}
	s.mu.Unlock()

	results, err := s.inner.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	s.put(key, cloneResults(results))
	return results, nil
}

// cloneResults copies a result set so cached entries never share backing
// storage with callers.
func cloneResults(results []domain.SearchResult) []domain.SearchResult {
	if results == nil {
		return nil
	}
	cloned := make([]domain.SearchResult, len(results))
	copy(cloned, results)
	return cloned
}

// Add delegates and invalidates cached results.
func (s *Store) Add(ctx context.Context, documentID int64, chunks []domain.Chunk) error {
	if err := s.inner.Add(ctx, documentID, chunks); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Delete delegates and invalidates cached results.
func (s *Store) Delete(ctx context.Context, documentID int64) error {
	if err := s.inner.Delete(ctx, documentID); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// UpdateEmbeddings delegates and invalidates cached results.
func (s *Store) UpdateEmbeddings(ctx context.Context, updates []domain.ChunkEmbedding) error {
	if err := s.inner.UpdateEmbeddings(ctx, updates); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Stats delegates to the wrapped store.
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return s.inner.Stats(ctx)
}

// ListChunks delegates to the wrapped store.
func (s *Store) ListChunks(ctx context.Context, offset, limit int) ([]domain.Chunk, error) {
	return s.inner.ListChunks(ctx, offset, limit)
}

// Close empties the cache and closes the wrapped store.
func (s *Store) Close() error {
	s.invalidate()
	return s.inner.Close()
}

// Len returns the number of resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	s.order = nil
}

// put inserts a result set; eviction drops expired entries first, then the
// oldest fresh entries until within capacity.
func (s *Store) put(key string, results []domain.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return
	}

	s.entries[key] = entry{results: results, addedAt: s.now()}
	s.order = append(s.order, key)

	if len(s.entries) <= s.maxSize {
		return
	}

	now := s.now()
	kept := s.order[:0]
	for _, k := range s.order {
		e, ok := s.entries[k]
		if !ok {
			continue
		}
		if now.Sub(e.addedAt) >= s.ttl {
			delete(s.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept

	for len(s.entries) > s.maxSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}

// evict removes one key. Caller holds the lock.
func (s *Store) evict(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// searchKey hashes the query vector and options into a cache key.
func searchKey(query []float32, opts domain.SearchOptions) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, f := range query {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f))
		h.Write(buf[:4])
	}
	binary.LittleEndian.PutUint64(buf, uint64(opts.K))
	h.Write(buf)
	if opts.DocumentID != nil {
		binary.LittleEndian.PutUint64(buf, uint64(*opts.DocumentID))
		h.Write(buf)
	}
	binary.LittleEndian.PutUint64(buf, math.Float64bits(opts.MinSimilarity))
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}
