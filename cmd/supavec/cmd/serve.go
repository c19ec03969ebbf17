package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/taishikato/supavec-api/internal/api"
	"github.com/taishikato/supavec-api/internal/auth"
	"github.com/taishikato/supavec-api/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Routes:
  POST <scrape_path>  Scrape a page (Authorization: <api key>)
  GET  /healthz       Liveness
  GET  /metrics       Prometheus metrics

Example:
  supavec serve
  SUPAVEC_SERVER_ADDR=:9090 supavec serve --log-format json`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s, err := openStack(ctx, m)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		s.close(closeCtx)
	}()

	server := api.NewServer(api.Config{
		Addr:            cfg.Server.Addr,
		ScrapePath:      cfg.Server.ScrapePath,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, auth.New(s.keys), s.pipeline, s.usage, m)

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
