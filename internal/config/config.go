// Package config loads the TOML configuration file. Missing file yields
// defaults; a present file overrides per field. The OpenAI API key is never
// stored in the file, only read from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/archivemind/corpus/internal/core/domain"
)

// APIKeyEnv is the environment variable holding the OpenAI API key.
const APIKeyEnv = "CORPUS_OPENAI_API_KEY"

// Config is the full application configuration.
type Config struct {
	// DataDir holds the databases. Defaults to ~/.corpus/data.
	DataDir string `toml:"data_dir"`

	Embedding Embedding `toml:"embedding"`
	Chunking  Chunking  `toml:"chunking"`
	Store     Store     `toml:"store"`
}

// Embedding configures the embedding provider and its cache.
type Embedding struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`

	// OllamaURL is the Ollama base URL for the ollama provider.
	OllamaURL string `toml:"ollama_url"`

	// RequestsPerSecond throttles the openai provider.
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// CacheSize bounds the embedding cache; CachePrefixLen is how many
	// bytes of input feed the cache key.
	CacheSize      int `toml:"cache_size"`
	CachePrefixLen int `toml:"cache_prefix_len"`
}

// Chunking configures the text chunker.
type Chunking struct {
	ChunkSize     int     `toml:"chunk_size"`
	Overlap       int     `toml:"overlap"`
	CharsPerToken int     `toml:"chars_per_token"`
	SnapThreshold float64 `toml:"snap_threshold"`

	// UseTokenizer selects token-window chunking; character fallback
	// otherwise.
	UseTokenizer bool `toml:"use_tokenizer"`
}

// Store configures the vector store backend and query cache.
type Store struct {
	// Backend is "sqlite" or "postgres".
	Backend string `toml:"backend"`

	// PostgresDSN is required for the postgres backend.
	PostgresDSN string `toml:"postgres_dsn"`

	// HNSW index tuning.
	M              int `toml:"hnsw_m"`
	EfConstruction int `toml:"hnsw_ef_construction"`
	EfSearch       int `toml:"hnsw_ef_search"`

	// Query cache bounds.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	CacheMaxSize    int `toml:"cache_max_size"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, err := os.UserHomeDir()
	dataDir := ".corpus/data"
	if err == nil {
		dataDir = filepath.Join(home, ".corpus", "data")
	}

	return &Config{
		DataDir: dataDir,
		Embedding: Embedding{
			Provider:       "ollama",
			CacheSize:      1000,
			CachePrefixLen: 256,
		},
		Chunking: Chunking{
			ChunkSize:     500,
			Overlap:       50,
			CharsPerToken: 4,
			SnapThreshold: 0.7,
			UseTokenizer:  true,
		},
		Store: Store{
			Backend:         "sqlite",
			CacheTTLSeconds: 300,
			CacheMaxSize:    100,
		},
	}
}

// DefaultPath returns the default config file location, ~/.corpus/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".corpus", "config.toml")
}

// Load reads the config file at path, overlaying it on the defaults.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config file, creating the parent directory as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q: %w", c.Embedding.Provider, domain.ErrInvalidInput)
	}

	switch c.Store.Backend {
	case "sqlite", "":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires postgres_dsn: %w", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown store backend %q: %w", c.Store.Backend, domain.ErrInvalidInput)
	}

	if c.Chunking.ChunkSize > 0 && c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d: %w",
			c.Chunking.Overlap, c.Chunking.ChunkSize, domain.ErrInvalidChunking)
	}

	return nil
}

// APIKey reads the OpenAI API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(APIKeyEnv)
}

// CacheTTL returns the query cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Store.CacheTTLSeconds) * time.Second
}
