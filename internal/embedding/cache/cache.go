// Package cache provides a bounded in-memory embedding cache that wraps any
// embedding service. Keys hash a truncated prefix of the input text, an
// intentionally lossy trade of exactness for bounded memory. Eviction is
// strict FIFO by insertion order, not a recency policy.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/logger"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// DefaultMaxSize is the default number of cached embeddings.
const DefaultMaxSize = 1000

// DefaultPrefixLen is the default number of bytes of input hashed into the
// cache key.
const DefaultPrefixLen = 256

// Service wraps an embedding service with a FIFO cache.
type Service struct {
	inner     driven.EmbeddingService
	maxSize   int
	prefixLen int

	mu      sync.Mutex
	entries map[string][]float32
	order   []string // insertion order, oldest first
}

// New creates a caching wrapper around inner. maxSize and prefixLen fall
// back to defaults when non-positive.
func New(inner driven.EmbeddingService, maxSize, prefixLen int) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLen
	}

	return &Service{
		inner:     inner,
		maxSize:   maxSize,
		prefixLen: prefixLen,
		entries:   make(map[string][]float32, maxSize),
	}
}

// Embed returns a cached vector when the key is present, otherwise
// delegates to the wrapped service and caches the result.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)

	s.mu.Lock()
	if vec, ok := s.entries[key]; ok {
		s.mu.Unlock()
		logger.Debug("embedding cache hit")
		return vec, nil
	}
	s.mu.Unlock()

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.put(key, vec)
	return vec, nil
}

// EmbedBatch serves cached items and delegates the misses in one batch,
// preserving input order. Errors from the wrapped service propagate; cached
// hits from a failed call are not kept partially applied.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int

	s.mu.Lock()
	for i, text := range texts {
		if vec, ok := s.entries[s.key(text)]; ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	s.mu.Unlock()

	if len(missTexts) == 0 {
		return vectors, nil
	}

	computed, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range computed {
		i := missIdx[j]
		vectors[i] = vec
		s.put(s.key(texts[i]), vec)
	}

	return vectors, nil
}

// Dimensions returns the wrapped service's embedding size.
func (s *Service) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *Service) ModelName() string {
	return s.inner.ModelName()
}

// Ping delegates to the wrapped service.
func (s *Service) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close releases the wrapped service.
func (s *Service) Close() error {
	return s.inner.Close()
}

// Len returns the number of resident cache entries.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// key hashes a truncated prefix of the input.
func (s *Service) key(text string) string {
	if len(text) > s.prefixLen {
		text = text[:s.prefixLen]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// put inserts an entry and evicts the oldest entries once over capacity.
func (s *Service) put(key string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return
	}

	s.entries[key] = vec
	s.order = append(s.order, key)

	for len(s.entries) > s.maxSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}
