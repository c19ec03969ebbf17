package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	searchLimit   int
	searchFormat  string
	searchFileIDs []string
	searchHybrid  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks",
	Long: `Search the indexed chunk documents.

Examples:
  # Basic search
  supavec search "how to install"

  # Only chunks of given files
  supavec search "pricing" --file-id 8f14e45f-... --file-id 1c9a...

  # Combine BM25 with vector similarity
  supavec search "error handling" --hybrid --limit 5

  # JSON output for scripting
  supavec search "modules" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
	searchCmd.Flags().StringSliceVar(&searchFileIDs, "file-id", nil, "Restrict results to these files")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "Embed the query and add vector similarity")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]

	documents, err := openDocuments(ctx)
	if err != nil {
		return err
	}

	var vector []float32
	if searchHybrid {
		embedder, err := newEmbedder(ctx)
		if err != nil {
			return err
		}
		vector, err = embedder.Embed(ctx, query)
		if err != nil {
			slog.Warn("query embedding failed, using text search only", "error", err)
		}
	}

	docs, err := documents.HybridSearch(ctx, query, vector, searchFileIDs, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(docs))
	for i, doc := range docs {
		fmt.Fprintf(out, "─── Result %d ───\n", i+1)
		fmt.Fprintf(out, "Source:  %s\n", doc.Metadata.Source)
		fmt.Fprintf(out, "File:    %s\n", doc.Metadata.FileID)
		fmt.Fprintf(out, "ID:      %s\n", doc.ID)

		content := []rune(doc.Content)
		if len(content) > 500 {
			content = append(content[:500], []rune("...")...)
		}
		fmt.Fprintf(out, "Content:\n%s\n\n", string(content))
	}

	return nil
}
