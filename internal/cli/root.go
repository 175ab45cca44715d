// Package cli implements the corpus command-line interface.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/archivemind/corpus/internal/chunker"
	"github.com/archivemind/corpus/internal/config"
	"github.com/archivemind/corpus/internal/core/ports/driven"
	"github.com/archivemind/corpus/internal/core/ports/driving"
	"github.com/archivemind/corpus/internal/core/services"
	"github.com/archivemind/corpus/internal/embedding/cache"
	"github.com/archivemind/corpus/internal/embedding/ollama"
	"github.com/archivemind/corpus/internal/embedding/openai"
	"github.com/archivemind/corpus/internal/extractors"
	"github.com/archivemind/corpus/internal/extractors/docx"
	"github.com/archivemind/corpus/internal/extractors/pdf"
	"github.com/archivemind/corpus/internal/extractors/plaintext"
	"github.com/archivemind/corpus/internal/graph"
	"github.com/archivemind/corpus/internal/logger"
	"github.com/archivemind/corpus/internal/storage/sqlite"
	"github.com/archivemind/corpus/internal/vectorstore"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose    bool
	configPath string

	ingestService    driving.IngestService
	retrievalService driving.RetrievalService
	embeddingService driven.EmbeddingService

	// closers shut down the wired stack after the command finishes.
	closers []func() error
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Document ingestion and semantic retrieval",
	Long: `Corpus ingests documents (PDF, DOCX, plain text, Markdown), chunks and
embeds them, and serves semantic search over the indexed chunks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}
		if err := ensureServices(); err != nil {
			return err
		}

		// Commands that embed fail fast when the model is unreachable.
		switch cmd.Name() {
		case "ingest", "search", "rebuild":
			if embeddingService != nil {
				if err := embeddingService.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("embedding service unavailable: %w", err)
				}
			}
		}
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.corpus/config.toml)")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// SetServices injects service implementations. Used in tests.
func SetServices(ingest driving.IngestService, retrieval driving.RetrievalService) {
	ingestService = ingest
	retrievalService = retrieval
	embeddingService = nil
}

// ensureServices wires the full stack from configuration. Already-injected
// services are left alone.
func ensureServices() error {
	if ingestService != nil && retrievalService != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	embeddingService = embedder
	closers = append(closers, embedder.Close)

	vectors, err := vectorstore.New(context.Background(), vectorstore.Config{
		Backend:        vectorstore.Backend(cfg.Store.Backend),
		Dimensions:     embedder.Dimensions(),
		SQLitePath:     filepath.Join(cfg.DataDir, "vectors.db"),
		PostgresDSN:    cfg.Store.PostgresDSN,
		M:              cfg.Store.M,
		EfConstruction: cfg.Store.EfConstruction,
		EfSearch:       cfg.Store.EfSearch,
		CacheTTL:       cfg.CacheTTL(),
		CacheMaxSize:   cfg.Store.CacheMaxSize,
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	closers = append(closers, vectors.Close)

	metadata, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("creating metadata store: %w", err)
	}
	closers = append(closers, metadata.Close)

	chunkerOpts := []chunker.Option{
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithCharsPerToken(cfg.Chunking.CharsPerToken),
		chunker.WithSnapThreshold(cfg.Chunking.SnapThreshold),
	}
	if cfg.Chunking.UseTokenizer {
		tokenizer, err := chunker.NewTiktokenTokenizer("")
		if err != nil {
			logger.Warn("Tokenizer unavailable, falling back to character chunking: %v", err)
		} else {
			chunkerOpts = append(chunkerOpts, chunker.WithTokenizer(tokenizer))
		}
	}
	chk, err := chunker.New(chunkerOpts...)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	registry := extractors.NewRegistry()
	registry.Register(plaintext.New())
	registry.Register(docx.New())
	registry.Register(pdf.New())

	ingestService = services.NewIngestService(registry, chk, embedder, vectors, metadata.DocumentStore())
	retrievalService = services.NewRetrievalService(embedder, vectors, graph.NewExtractor())
	return nil
}

// buildEmbedder constructs the configured embedding provider wrapped in the
// FIFO cache.
func buildEmbedder(cfg *config.Config) (*cache.Service, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:            cfg.APIKey(),
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("creating openai embedder: %w", err)
		}
		return cache.New(svc, cfg.Embedding.CacheSize, cfg.Embedding.CachePrefixLen), nil
	default:
		svc := ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.Embedding.OllamaURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		return cache.New(svc, cfg.Embedding.CacheSize, cfg.Embedding.CachePrefixLen), nil
	}
}

// shutdown closes the wired stack in reverse order.
func shutdown() error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closers = nil
	return firstErr
}
