package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/archivemind/corpus/internal/core/domain"
)

var ingestFormat string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the index",
	Long: `Extracts text from the given files, chunks and embeds it, and indexes
the chunks for semantic search. The format is inferred from the file
extension unless --format is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "override format (pdf, docx, txt, md)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	var failed int

	for _, path := range args {
		format, err := resolveFormat(path)
		if err != nil {
			cmd.PrintErrf("skipping %s: %v\n", path, err)
			failed++
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("skipping %s: %v\n", path, err)
			failed++
			continue
		}

		doc, err := ingestService.Ingest(ctx, &domain.RawDocument{
			Filename: filepath.Base(path),
			Format:   format,
			Content:  content,
		})
		if err != nil {
			cmd.PrintErrf("failed %s: %v\n", path, err)
			failed++
			continue
		}

		cmd.Printf("Ingested %s: document %d, %d chunks (%d pages, %d paragraphs)\n",
			doc.Filename, doc.ID, doc.ChunkCount, doc.PageCount, doc.ParagraphCount)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// resolveFormat uses the --format override or the file extension.
func resolveFormat(path string) (domain.DocumentFormat, error) {
	if ingestFormat != "" {
		return domain.ParseFormat(ingestFormat)
	}
	return domain.ParseFormat(filepath.Ext(path))
}
