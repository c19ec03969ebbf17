package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taishikato/supavec-api/internal/auth"
	"github.com/taishikato/supavec-api/internal/database"
	"github.com/taishikato/supavec-api/internal/elasticsearch"
	"github.com/taishikato/supavec-api/internal/embeddings"
	"github.com/taishikato/supavec-api/internal/fetcher"
	"github.com/taishikato/supavec-api/internal/metrics"
	"github.com/taishikato/supavec-api/internal/pipeline"
	"github.com/taishikato/supavec-api/internal/storage"
	"github.com/taishikato/supavec-api/internal/usage"
)

// stack holds the connected backends shared by serve, scrape and mcp.
type stack struct {
	keys      *auth.RedisKeyStore
	db        *database.DB
	objects   *storage.Client
	documents *elasticsearch.Client
	embedder  embeddings.Embedder
	metrics   *metrics.Metrics
	usage     *usage.Logger
	pipeline  *pipeline.Pipeline
}

func openStack(ctx context.Context, m *metrics.Metrics) (*stack, error) {
	cfg := GetConfig()
	s := &stack{metrics: m}

	var err error
	s.keys, err = auth.NewRedisKeyStore(ctx, auth.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}

	s.db, err = database.Open(cfg.Database.Path)
	if err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s.objects, err = openObjects(ctx)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	s.embedder, err = newEmbedder(ctx)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	s.documents, err = openDocuments(ctx)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	f, err := fetcher.New(fetcher.Config{
		Engine:     cfg.Fetcher.Engine,
		Timeout:    cfg.Fetcher.Timeout,
		UserAgent:  cfg.Fetcher.UserAgent,
		ChromePath: cfg.Fetcher.ChromePath,
	})
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	s.usage = usage.NewLogger(s.db, cfg.Usage.QueueSize, m)

	s.pipeline = pipeline.New(pipeline.Config{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		OnFailure:    cfg.Pipeline.OnFailure,
	}, pipeline.Components{
		Fetcher:   f,
		Objects:   s.objects,
		Files:     s.db,
		Embedder:  s.embedder,
		Documents: s.documents,
		Metrics:   m,
	})

	return s, nil
}

// close drains the usage queue before the database goes away.
func (s *stack) close(ctx context.Context) {
	if s.usage != nil {
		if err := s.usage.Close(ctx); err != nil {
			slog.Warn("usage logger did not drain", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
	if s.keys != nil {
		_ = s.keys.Close()
	}
}

func openObjects(ctx context.Context) (*storage.Client, error) {
	cfg := GetConfig()
	objects, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return objects, nil
}

func openDocuments(ctx context.Context) (*elasticsearch.Client, error) {
	cfg := GetConfig()
	dims := cfg.Elasticsearch.Dims
	if dims <= 0 {
		dims = embeddings.Dimensions(cfg.Embeddings.Model)
	}

	documents, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		Dims:      dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	if !documents.Ping(ctx) {
		return nil, errors.New("elasticsearch is not available")
	}
	if err := documents.CreateIndex(ctx); err != nil {
		return nil, err
	}
	return documents, nil
}

func newEmbedder(ctx context.Context) (embeddings.Embedder, error) {
	cfg := GetConfig()
	emb, err := embeddings.New(ctx, embeddings.Config{
		Provider:   cfg.Embeddings.Provider,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		SocketPath: cfg.Embeddings.SocketPath,
		Model:      cfg.Embeddings.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}
