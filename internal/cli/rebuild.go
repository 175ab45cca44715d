package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildBatchSize int

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed all indexed chunks",
	Long: `Recomputes embeddings for every stored chunk with the currently
configured model. Runs in batches and commits after each batch, so an
interrupted rebuild can simply be re-run.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().IntVar(&rebuildBatchSize, "batch-size", 64, "chunks per embedding batch")
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	total, err := retrievalService.Rebuild(context.Background(), rebuildBatchSize)
	if err != nil {
		return fmt.Errorf("rebuild failed after %d chunks: %w", total, err)
	}

	cmd.Printf("Re-embedded %d chunks\n", total)
	return nil
}
