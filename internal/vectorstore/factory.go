// Package vectorstore selects and constructs the vector store backend.
// The backend is chosen once at startup; there is no runtime switching.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/archivemind/corpus/internal/core/domain"
	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/vectorstore/cache"
	"github.com/archivemind/corpus/internal/vectorstore/postgres"
	"github.com/archivemind/corpus/internal/vectorstore/sqlite"
)

// Backend identifies a vector store implementation.
type Backend string

const (
	// BackendSQLite is the embedded local backend.
	BackendSQLite Backend = "sqlite"

	// BackendPostgres is the relational backend with the vector extension.
	BackendPostgres Backend = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend    Backend
	Dimensions int

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string

	// HNSW index tuning, shared by both backends.
	M              int
	EfConstruction int
	EfSearch       int

	// Query cache bounds. CacheTTL of zero keeps the default; CacheDisabled
	// turns the cache layer off entirely.
	CacheTTL      time.Duration
	CacheMaxSize  int
	CacheDisabled bool
}

// New constructs the configured backend wrapped in the query cache.
func New(ctx context.Context, cfg Config) (driven.VectorStore, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}

	var store driven.VectorStore
	var err error

	switch cfg.Backend {
	case BackendSQLite:
		store, err = sqlite.NewStore(sqlite.Config{
			Path:           cfg.SQLitePath,
			Dimensions:     cfg.Dimensions,
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
		})
	case BackendPostgres:
		store, err = postgres.NewStore(ctx, postgres.Config{
			DSN:            cfg.PostgresDSN,
			Dimensions:     cfg.Dimensions,
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
		})
	default:
		return nil, fmt.Errorf("unknown vector store backend %q: %w", cfg.Backend, domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s vector store: %w", cfg.Backend, err)
	}

	if cfg.CacheDisabled {
		return store, nil
	}

	return cache.New(store,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithMaxSize(cfg.CacheMaxSize),
	), nil
}
