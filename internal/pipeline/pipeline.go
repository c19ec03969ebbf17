// Package pipeline runs one scrape request end to end: fetch, convert,
// store the raw text, record the file, then chunk, embed and index.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taishikato/supavec-api/internal/apperr"
	"github.com/taishikato/supavec-api/internal/chunker"
	"github.com/taishikato/supavec-api/internal/config"
	"github.com/taishikato/supavec-api/internal/fetcher"
	"github.com/taishikato/supavec-api/internal/metrics"
	"github.com/taishikato/supavec-api/internal/processor"
	"github.com/taishikato/supavec-api/pkg/models"
)

// ObjectStore keeps the raw page text.
type ObjectStore interface {
	PutText(ctx context.Context, key, content string) error
	Remove(ctx context.Context, key string) error
}

// FileStore keeps file rows.
type FileStore interface {
	InsertFile(ctx context.Context, f models.File) error
	DeleteFile(ctx context.Context, fileID string) error
}

// Embedder turns chunk text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentWriter writes one document per chunk.
type DocumentWriter interface {
	IndexDocument(ctx context.Context, doc models.Document) error
}

// DocumentStore keeps one document per chunk.
type DocumentStore interface {
	DocumentWriter
	DeleteByFileID(ctx context.Context, fileID string) error
}

// Config holds pipeline configuration.
type Config struct {
	ChunkSize    int    // used when a request omits chunk_size
	ChunkOverlap int    // used when a request omits chunk_overlap
	OnFailure    string // config.OnFailureKeep or config.OnFailureCleanup
}

// Components are the collaborators a Pipeline writes through.
type Components struct {
	Fetcher   fetcher.Fetcher
	Objects   ObjectStore
	Files     FileStore
	Embedder  Embedder
	Documents DocumentStore
	Metrics   *metrics.Metrics // may be nil
}

// Pipeline orchestrates the scrape flow for a single request.
type Pipeline struct {
	config    Config
	fetcher   fetcher.Fetcher
	processor *processor.Processor
	objects   ObjectStore
	files     FileStore
	embedder  Embedder
	documents DocumentStore
	metrics   *metrics.Metrics
}

// New creates a new Pipeline with the given configuration.
func New(cfg Config, c Components) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = config.OnFailureKeep
	}

	return &Pipeline{
		config:    cfg,
		fetcher:   c.Fetcher,
		processor: processor.New(),
		objects:   c.Objects,
		files:     c.Files,
		embedder:  c.Embedder,
		documents: c.Documents,
		metrics:   c.Metrics,
	}
}

// Splitter returns the chunker for a request, applying defaults for
// omitted parameters.
func (p *Pipeline) Splitter(req models.ScrapeRequest) (*chunker.Splitter, error) {
	size, overlap := p.config.ChunkSize, p.config.ChunkOverlap
	if req.ChunkSize != nil {
		size = *req.ChunkSize
	}
	if req.ChunkOverlap != nil {
		overlap = *req.ChunkOverlap
	}

	s, err := chunker.New(size, overlap)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err)
	}
	return s, nil
}

// Run executes the full pipeline for req on behalf of id. Failures are
// apperr errors. Side effects already made when a later step fails are
// kept or removed according to Config.OnFailure.
func (p *Pipeline) Run(ctx context.Context, id models.Identity, req models.ScrapeRequest) (*models.ScrapeResult, error) {
	if req.URL == "" {
		return nil, apperr.New(apperr.KindValidation, "url is required")
	}

	splitter, err := p.Splitter(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fetched, err := p.fetcher.Fetch(ctx, req.URL)
	p.metrics.ObserveStage(metrics.StageFetch, start)
	if err != nil {
		slog.Warn("fetch failed", "url", req.URL, "error", err)
		return nil, apperr.Fetch(err)
	}

	start = time.Now()
	page, err := p.processor.Normalize(fetched.ContentType, fetched.Body)
	p.metrics.ObserveStage(metrics.StageConvert, start)
	if err != nil {
		slog.Warn("conversion failed", "url", req.URL, "error", err)
		return nil, apperr.Fetch(err)
	}

	fileID := uuid.NewString()
	storagePath := models.StoragePath(id.TeamID, fileID)
	log := slog.With("url", req.URL, "file_id", fileID)

	start = time.Now()
	err = p.objects.PutText(ctx, storagePath, page.Markdown)
	p.metrics.ObserveStage(metrics.StageUpload, start)
	if err != nil {
		log.Error("upload failed", "error", err)
		return nil, apperr.Storage(err)
	}

	start = time.Now()
	err = p.files.InsertFile(ctx, models.File{
		FileID:      fileID,
		Type:        models.FileTypeWebScrape,
		FileName:    req.URL,
		Title:       page.Title,
		TeamID:      id.TeamID,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	})
	p.metrics.ObserveStage(metrics.StageRecord, start)
	if err != nil {
		log.Error("file record failed", "error", err)
		p.cleanup(fileID, storagePath, false)
		return nil, apperr.Storage(err)
	}

	start = time.Now()
	chunks := splitter.Split(page.Markdown, req.URL, fileID)
	p.metrics.ObserveStage(metrics.StageChunk, start)
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	log.Debug("page chunked", "chunks", len(chunks), "chunk_size", splitter.Size(), "chunk_overlap", splitter.Overlap())

	if err := IndexChunks(ctx, p.embedder, p.documents, p.metrics, chunks); err != nil {
		log.Error("indexing failed", "error", err)
		p.cleanup(fileID, storagePath, true)
		return nil, err
	}

	log.Info("page scraped", "chunks", len(chunks), "title", page.Title)

	return &models.ScrapeResult{
		Markdown:    page.Markdown,
		Chunks:      chunks,
		FileID:      fileID,
		StoragePath: storagePath,
	}, nil
}

// IndexChunks embeds and writes chunks one at a time, in order, stopping
// at the first failure. Document IDs derive from file_id and position so
// rewriting the same chunks replaces them.
func IndexChunks(ctx context.Context, embedder Embedder, documents DocumentWriter, m *metrics.Metrics, chunks []models.Chunk) error {
	for i, chunk := range chunks {
		start := time.Now()
		vector, err := embedder.Embed(ctx, chunk.Text)
		m.ObserveStage(metrics.StageEmbed, start)
		if err != nil {
			return apperr.Embedding(err)
		}

		start = time.Now()
		err = documents.IndexDocument(ctx, models.Document{
			ID:         models.DocumentID(chunk.Metadata.FileID, i),
			Content:    chunk.Text,
			Metadata:   chunk.Metadata,
			ChunkIndex: i,
			Embedding:  vector,
			CreatedAt:  time.Now().UTC(),
		})
		m.ObserveStage(metrics.StageIndex, start)
		if err != nil {
			return apperr.Storage(err)
		}
	}
	return nil
}

// cleanup removes what a failed request already wrote when the policy asks
// for it. Errors are logged and never replace the original failure.
func (p *Pipeline) cleanup(fileID, storagePath string, fileRecorded bool) {
	if p.config.OnFailure != config.OnFailureCleanup {
		slog.Warn("keeping partial writes", "file_id", fileID, "storage_path", storagePath)
		return
	}

	// The request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if fileRecorded {
		if err := p.documents.DeleteByFileID(ctx, fileID); err != nil {
			slog.Error("cleanup: delete documents failed", "file_id", fileID, "error", err)
		}
		if err := p.files.DeleteFile(ctx, fileID); err != nil {
			slog.Error("cleanup: delete file row failed", "file_id", fileID, "error", err)
		}
	}
	if err := p.objects.Remove(ctx, storagePath); err != nil {
		slog.Error("cleanup: remove object failed", "storage_path", storagePath, "error", err)
	}
}
