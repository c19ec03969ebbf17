package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taishikato/supavec-api/internal/apperr"
	"github.com/taishikato/supavec-api/internal/chunker"
	"github.com/taishikato/supavec-api/internal/config"
	"github.com/taishikato/supavec-api/internal/fetcher"
	"github.com/taishikato/supavec-api/internal/metrics"
	"github.com/taishikato/supavec-api/pkg/models"
)

type fakeFetcher struct {
	result *fetcher.Result
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*fetcher.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.URL = pageURL
	return &r, nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (m *memObjects) PutText(_ context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	m.objects[key] = content
	return nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string]models.File
	err   error
}

func (m *memFiles) InsertFile(_ context.Context, f models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.files == nil {
		m.files = map[string]models.File{}
	}
	m.files[f.FileID] = f
	return nil
}

func (m *memFiles) DeleteFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileID)
	return nil
}

// countingEmbedder fails on the failAt-th call (1-based) when failAt > 0.
type countingEmbedder struct {
	calls  int
	failAt int
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return nil, errors.New("rate limit exceeded")
	}
	return []float32{float32(len(text)), 1}, nil
}

type memDocuments struct {
	mu   sync.Mutex
	docs map[string]models.Document
	err  error
}

func (m *memDocuments) IndexDocument(_ context.Context, doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.docs == nil {
		m.docs = map[string]models.Document{}
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocuments) DeleteByFileID(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.docs {
		if d.Metadata.FileID == fileID {
			delete(m.docs, id)
		}
	}
	return nil
}

type harness struct {
	fetcher  *fakeFetcher
	objects  *memObjects
	files    *memFiles
	embedder *countingEmbedder
	docs     *memDocuments
	pipeline *Pipeline
}

func newHarness(body string, onFailure string) *harness {
	h := &harness{
		fetcher:  &fakeFetcher{result: &fetcher.Result{ContentType: "text/html", Body: body, StatusCode: 200}},
		objects:  &memObjects{},
		files:    &memFiles{},
		embedder: &countingEmbedder{},
		docs:     &memDocuments{},
	}
	h.pipeline = New(Config{OnFailure: onFailure}, Components{
		Fetcher:   h.fetcher,
		Objects:   h.objects,
		Files:     h.files,
		Embedder:  h.embedder,
		Documents: h.docs,
		Metrics:   metrics.NewNop(),
	})
	return h
}

func intPtr(n int) *int { return &n }

var identity = models.Identity{TeamID: "team-1", UserID: "user-1"}

// fiveParagraphs converts to five paragraphs of about 60 characters each.
func fiveParagraphs() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "<p>Paragraph number %d carries enough words to be its own chunk.</p>", i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestRun_Success(t *testing.T) {
	h := newHarness(`<html><head><title>Example Domain</title></head><body><h1>Example Domain</h1><p>This domain is for use in illustrative examples.</p></body></html>`, config.OnFailureKeep)

	res, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{
		URL:          "https://example.com",
		ChunkSize:    intPtr(500),
		ChunkOverlap: intPtr(50),
	})
	require.NoError(t, err)

	parsed, err := uuid.Parse(res.FileID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.Equal(t, "team-1/"+res.FileID+".txt", res.StoragePath)

	require.NotEmpty(t, res.Chunks)
	for _, c := range res.Chunks {
		assert.Equal(t, res.FileID, c.Metadata.FileID)
		assert.Equal(t, "https://example.com", c.Metadata.Source)
	}
	assert.Contains(t, res.Markdown, "# Example Domain")

	// The same file_id threads through object, row and documents.
	assert.Equal(t, res.Markdown, h.objects.objects[res.StoragePath])
	file := h.files.files[res.FileID]
	assert.Equal(t, models.FileTypeWebScrape, file.Type)
	assert.Equal(t, "https://example.com", file.FileName)
	assert.Equal(t, "Example Domain", file.Title)
	assert.Equal(t, res.StoragePath, file.StoragePath)
	assert.Len(t, h.docs.docs, len(res.Chunks))
	doc := h.docs.docs[models.DocumentID(res.FileID, 0)]
	assert.Equal(t, res.Chunks[0].Text, doc.Content)
	assert.NotEmpty(t, doc.Embedding)
}

func TestRun_FileIDsAreUniquePerRequest(t *testing.T) {
	h := newHarness("<p>hello</p>", config.OnFailureKeep)

	a, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com"})
	require.NoError(t, err)
	b, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com"})
	require.NoError(t, err)

	assert.NotEqual(t, a.FileID, b.FileID)
}

func TestRun_MissingURL(t *testing.T) {
	h := newHarness("<p>x</p>", config.OnFailureKeep)

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{})
	require.Error(t, err)
	assert.Equal(t, "url is required", err.Error())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.fetcher.calls)
}

func TestRun_InvalidChunkParameters(t *testing.T) {
	h := newHarness("<p>x</p>", config.OnFailureKeep)

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{
		URL:          "https://example.com",
		ChunkSize:    intPtr(10),
		ChunkOverlap: intPtr(10),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.fetcher.calls)
}

func TestRun_FetchFailureWritesNothing(t *testing.T) {
	h := newHarness("", config.OnFailureKeep)
	h.fetcher.err = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://nope.invalid"})
	require.Error(t, err)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", err.Error())
	assert.Equal(t, apperr.KindFetch, apperr.KindOf(err))

	assert.Empty(t, h.objects.objects)
	assert.Empty(t, h.files.files)
	assert.Empty(t, h.docs.docs)
	assert.Zero(t, h.embedder.calls)
}

func TestRun_UploadFailure(t *testing.T) {
	h := newHarness("<p>x</p>", config.OnFailureKeep)
	h.objects.err = errors.New("bucket not found")

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Empty(t, h.files.files)
	assert.Empty(t, h.docs.docs)
}

func TestRun_FileRecordFailureCleanup(t *testing.T) {
	h := newHarness("<p>x</p>", config.OnFailureCleanup)
	h.files.err = errors.New("database is locked")

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Empty(t, h.objects.objects)
}

func embeddingFailureRun(t *testing.T, onFailure string) *harness {
	t.Helper()
	h := newHarness(fiveParagraphs(), onFailure)
	h.embedder.failAt = 3

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{
		URL:          "https://example.com",
		ChunkSize:    intPtr(80),
		ChunkOverlap: intPtr(0),
	})
	require.Error(t, err)
	assert.Equal(t, "rate limit exceeded", err.Error())
	assert.Equal(t, apperr.KindEmbedding, apperr.KindOf(err))
	assert.Equal(t, 3, h.embedder.calls, "no chunk after the failing one is embedded")
	return h
}

func TestRun_ChunkCountForFailureScenario(t *testing.T) {
	h := newHarness(fiveParagraphs(), config.OnFailureKeep)

	res, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{
		URL:          "https://example.com",
		ChunkSize:    intPtr(80),
		ChunkOverlap: intPtr(0),
	})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 5)
	assert.Equal(t, res.Markdown, chunker.Reconstruct(res.Chunks))
}

func TestRun_EmbeddingFailureKeep(t *testing.T) {
	h := embeddingFailureRun(t, config.OnFailureKeep)

	assert.Len(t, h.docs.docs, 2)
	assert.Len(t, h.files.files, 1)
	assert.Len(t, h.objects.objects, 1)
}

func TestRun_EmbeddingFailureCleanup(t *testing.T) {
	h := embeddingFailureRun(t, config.OnFailureCleanup)

	assert.Empty(t, h.docs.docs)
	assert.Empty(t, h.files.files)
	assert.Empty(t, h.objects.objects)
}

func TestRun_DocumentWriteFailure(t *testing.T) {
	h := newHarness("<p>hello</p>", config.OnFailureKeep)
	h.docs.err = errors.New("cluster_block_exception")

	_, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Equal(t, 1, h.embedder.calls)
}

func TestRun_MarkdownPassesThrough(t *testing.T) {
	h := newHarness("", config.OnFailureKeep)
	h.fetcher.result = &fetcher.Result{ContentType: "text/markdown", Body: "# Notes\n\nAlready markdown."}

	res, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com/notes.md"})
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\nAlready markdown.", res.Markdown)
	assert.Equal(t, "Notes", h.files.files[res.FileID].Title)
}

func TestRun_EmptyPageHasEmptyChunks(t *testing.T) {
	h := newHarness("", config.OnFailureKeep)
	h.fetcher.result = &fetcher.Result{ContentType: "text/plain", Body: ""}

	res, err := h.pipeline.Run(t.Context(), identity, models.ScrapeRequest{URL: "https://example.com/empty"})
	require.NoError(t, err)
	assert.NotNil(t, res.Chunks)
	assert.Empty(t, res.Chunks)
}

func TestSplitter_Defaults(t *testing.T) {
	h := newHarness("", config.OnFailureKeep)

	s, err := h.pipeline.Splitter(models.ScrapeRequest{})
	require.NoError(t, err)
	assert.Equal(t, chunker.DefaultSize, s.Size())
	assert.Equal(t, chunker.DefaultOverlap, s.Overlap())

	s, err = h.pipeline.Splitter(models.ScrapeRequest{ChunkSize: intPtr(300), ChunkOverlap: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 300, s.Size())
	assert.Equal(t, 0, s.Overlap())
}
