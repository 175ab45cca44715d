package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivemind/corpus/internal/core/domain"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.InDelta(t, 0.7, cfg.Chunking.SnapThreshold, 1e-9)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/tmp/corpus-test"

[embedding]
provider = "openai"
model = "text-embedding-3-small"
dimensions = 1536

[chunking]
chunk_size = 200
overlap = 20

[store]
backend = "postgres"
postgres_dsn = "postgres://localhost:5432/corpus"
hnsw_m = 32
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/corpus-test", cfg.DataDir)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 200, cfg.Chunking.ChunkSize)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 32, cfg.Store.M)

	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, cfg.Embedding.CacheSize)
	assert.InDelta(t, 0.7, cfg.Chunking.SnapThreshold, 1e-9)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "llamafile"

	err := cfg.Validate()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidate_PostgresNeedsDSN(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "postgres"

	err := cfg.Validate()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	cfg.Store.PostgresDSN = "postgres://localhost/corpus"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_OverlapMustBeSmallerThanChunkSize(t *testing.T) {
	cfg := Default()
	cfg.Chunking.ChunkSize = 100
	cfg.Chunking.Overlap = 100

	err := cfg.Validate()
	assert.ErrorIs(t, err, domain.ErrInvalidChunking)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Embedding.Model = "nomic-embed-text"
	cfg.Store.CacheMaxSize = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", loaded.Embedding.Model)
	assert.Equal(t, 42, loaded.Store.CacheMaxSize)
}
