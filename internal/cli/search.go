package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archivemind/corpus/internal/core/domain"
)

var (
	searchLimit    int
	searchJSON     bool
	searchDocID    int64
	searchMinScore float64
	searchEnrich   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Embeds the query and returns the most similar chunks across all
indexed documents, ranked by cosine similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().Int64Var(&searchDocID, "document", 0, "restrict search to one document ID")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-similarity", 0, "exclude results below this similarity")
	searchCmd.Flags().BoolVar(&searchEnrich, "enrich", false, "extract entities and relations from results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := context.Background()
	opts := domain.SearchOptions{
		K:             searchLimit,
		MinSimilarity: searchMinScore,
	}
	if searchDocID != 0 {
		opts.DocumentID = &searchDocID
	}

	results, err := retrievalService.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	if err := outputSearchTable(cmd, results); err != nil {
		return err
	}

	if searchEnrich && len(results) > 0 {
		outputEnrichment(cmd, ctx, results)
	}
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, result := range results {
		cmd.Printf("  [%d] document %d, chunk %d (%.2f)\n",
			i+1, result.DocumentID, result.ChunkIndex, result.Similarity)
		cmd.Printf("      %s\n", snippet(result.Content, 160))
		cmd.Println()
	}
	return nil
}

func outputEnrichment(cmd *cobra.Command, ctx context.Context, results []domain.SearchResult) {
	var combined string
	for _, result := range results {
		combined += result.Content + " "
	}

	entities, relations := retrievalService.EnrichContext(ctx, combined)
	if len(entities) == 0 {
		return
	}

	cmd.Println("Entities:")
	for _, entity := range entities {
		cmd.Printf("  %s (%d mentions)\n", entity.Name, entity.MentionCount)
	}
	if len(relations) > 0 {
		cmd.Println("Relations:")
		for _, relation := range relations {
			cmd.Printf("  %s -- %s (%s, %.2f)\n",
				relation.Source, relation.Target, relation.Type, relation.Confidence)
		}
	}
}

// snippet truncates text at a rune boundary for display.
func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
