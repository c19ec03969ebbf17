package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taishikato/supavec-api/internal/auth"
	"github.com/taishikato/supavec-api/internal/mcp"
	"github.com/taishikato/supavec-api/internal/metrics"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server over stdio.

Tools (each takes the caller's api_key):
  - scrape_url: Run the scrape pipeline for a page
  - search_documents: Search the team's indexed chunks
  - get_document: Get a specific chunk by ID

Example:
  supavec mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := GetConfig()

	s, err := openStack(ctx, metrics.NewNop())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.close(closeCtx)
	}()

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, mcp.Deps{
		Auth:     auth.New(s.keys),
		Scraper:  s.pipeline,
		Usage:    s.usage,
		Searcher: s.documents,
		Files:    s.db,
		Embedder: s.embedder,
	})

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
