package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taishikato/supavec-api/internal/auth"
	"github.com/taishikato/supavec-api/internal/metrics"
	"github.com/taishikato/supavec-api/pkg/models"
)

var (
	scrapeURL          string
	scrapeAPIKey       string
	scrapeChunkSize    int
	scrapeChunkOverlap int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the scrape pipeline once for a URL",
	Long: `Fetch a page, store it, chunk it and index the chunks, then print
the same JSON body the HTTP API would return.

Examples:
  supavec scrape --url https://example.com --api-key 3f2b8c1e-...
  supavec scrape --url https://example.com --api-key 3f2b8c1e-... --chunk-size 500 --chunk-overlap 0`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "Page URL to scrape")
	scrapeCmd.Flags().StringVar(&scrapeAPIKey, "api-key", "", "API key of the calling team")
	scrapeCmd.Flags().IntVar(&scrapeChunkSize, "chunk-size", 0, "Maximum characters per chunk (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeChunkOverlap, "chunk-overlap", 0, "Characters shared between chunks (default from config)")
	_ = scrapeCmd.MarkFlagRequired("url")
	_ = scrapeCmd.MarkFlagRequired("api-key")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStack(ctx, metrics.NewNop())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.close(closeCtx)
	}()

	id, err := auth.New(s.keys).Authenticate(ctx, scrapeAPIKey)
	if err != nil {
		return err
	}

	req := models.ScrapeRequest{URL: scrapeURL}
	if cmd.Flags().Changed("chunk-size") {
		req.ChunkSize = &scrapeChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		req.ChunkOverlap = &scrapeChunkOverlap
	}

	result, runErr := s.pipeline.Run(ctx, id, req)
	entry := models.UsageLog{UserID: id.UserID, Endpoint: "cli:scrape", Success: runErr == nil}
	if runErr != nil {
		msg := runErr.Error()
		entry.Error = &msg
	}
	s.usage.Record(entry)
	if runErr != nil {
		return runErr
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
