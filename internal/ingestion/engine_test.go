package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taishikato/supavec-api/internal/apperr"
	"github.com/taishikato/supavec-api/pkg/models"
)

type memTexts map[string]string

func (m memTexts) GetText(_ context.Context, key string) (string, error) {
	text, ok := m[key]
	if !ok {
		return "", errors.New("The specified key does not exist.")
	}
	return text, nil
}

type memFiles map[string]models.File

func (m memFiles) GetFile(_ context.Context, teamID, fileID string) (*models.File, error) {
	f, ok := m[fileID]
	if !ok || f.TeamID != teamID {
		return nil, errors.New("not found")
	}
	return &f, nil
}

type staticEmbedder struct {
	calls  int
	failAt int // 1-based call that fails; 0 never fails
}

func (e *staticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return nil, errors.New("rate limited")
	}
	return []float32{1, 2, 3}, nil
}

type memDocs map[string]models.Document

func (m memDocs) IndexDocument(_ context.Context, doc models.Document) error {
	m[doc.ID] = doc
	return nil
}

func (m memDocs) DeleteChunksFrom(_ context.Context, fileID string, fromIndex int) error {
	for id, d := range m {
		if d.Metadata.FileID == fileID && d.ChunkIndex >= fromIndex {
			delete(m, id)
		}
	}
	return nil
}

const fileID = "8f14e45f-ceea-4e7a-9b2d-6c1f0a3b5d7e"

func fixtures() (memTexts, memFiles) {
	path := models.StoragePath("team-1", fileID)
	text := strings.Repeat("A sentence about chunks. ", 40)
	return memTexts{path: text}, memFiles{fileID: {
		FileID:      fileID,
		Type:        models.FileTypeWebScrape,
		FileName:    "https://example.com/guide",
		TeamID:      "team-1",
		StoragePath: path,
	}}
}

func TestReindex_IsIdempotent(t *testing.T) {
	texts, files := fixtures()
	docs := memDocs{}
	emb := &staticEmbedder{}
	engine := New(texts, files, emb, docs, nil)

	req := Request{TeamID: "team-1", FileID: fileID, ChunkSize: 200, ChunkOverlap: 20}

	first, err := engine.Reindex(context.Background(), req)
	require.NoError(t, err)
	require.Positive(t, first.DocsIndexed)
	assert.Len(t, docs, first.DocsIndexed)

	second, err := engine.Reindex(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.DocsIndexed, second.DocsIndexed)
	assert.Len(t, docs, first.DocsIndexed)

	for i := 0; i < first.DocsIndexed; i++ {
		doc, ok := docs[models.DocumentID(fileID, i)]
		require.True(t, ok, "missing document %d", i)
		assert.Equal(t, "https://example.com/guide", doc.Metadata.Source)
		assert.Equal(t, i, doc.ChunkIndex)
	}
}

func TestReindex_SmallerChunkCountRemovesStaleDocuments(t *testing.T) {
	texts, files := fixtures()
	docs := memDocs{}
	engine := New(texts, files, &staticEmbedder{}, docs, nil)

	small, err := engine.Reindex(context.Background(), Request{TeamID: "team-1", FileID: fileID, ChunkSize: 100, ChunkOverlap: 0})
	require.NoError(t, err)

	large, err := engine.Reindex(context.Background(), Request{TeamID: "team-1", FileID: fileID, ChunkSize: 500, ChunkOverlap: 0})
	require.NoError(t, err)

	require.Greater(t, small.DocsIndexed, large.DocsIndexed)
	assert.Len(t, docs, large.DocsIndexed)
}

func TestReindex_EmbeddingFailureKeepsIndexedDocuments(t *testing.T) {
	texts, files := fixtures()
	docs := memDocs{}
	req := Request{TeamID: "team-1", FileID: fileID, ChunkSize: 200, ChunkOverlap: 20}

	full, err := New(texts, files, &staticEmbedder{}, docs, nil).Reindex(context.Background(), req)
	require.NoError(t, err)
	require.Greater(t, full.DocsIndexed, 2)

	failing := &staticEmbedder{failAt: 2}
	_, err = New(texts, files, failing, docs, nil).Reindex(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindEmbedding, apperr.KindOf(err))
	assert.Equal(t, "rate limited", err.Error())

	assert.Len(t, docs, full.DocsIndexed)
	for i := 0; i < full.DocsIndexed; i++ {
		_, ok := docs[models.DocumentID(fileID, i)]
		assert.True(t, ok, "document %d was removed", i)
	}
}

func TestReindex_SourceOverride(t *testing.T) {
	texts, files := fixtures()
	docs := memDocs{}
	engine := New(texts, files, &staticEmbedder{}, docs, nil)

	_, err := engine.Reindex(context.Background(), Request{
		TeamID: "team-1", FileID: fileID, Source: "https://mirror.example.com/guide", ChunkSize: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com/guide", docs[models.DocumentID(fileID, 0)].Metadata.Source)
}

func TestReindex_Errors(t *testing.T) {
	texts, files := fixtures()

	t.Run("unknown file", func(t *testing.T) {
		engine := New(texts, files, &staticEmbedder{}, memDocs{}, nil)
		_, err := engine.Reindex(context.Background(), Request{TeamID: "team-1", FileID: "missing", ChunkSize: 100})
		require.Error(t, err)
		assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	})

	t.Run("other team", func(t *testing.T) {
		engine := New(texts, files, &staticEmbedder{}, memDocs{}, nil)
		_, err := engine.Reindex(context.Background(), Request{TeamID: "team-2", FileID: fileID, ChunkSize: 100})
		assert.Error(t, err)
	})

	t.Run("missing object", func(t *testing.T) {
		engine := New(memTexts{}, files, &staticEmbedder{}, memDocs{}, nil)
		_, err := engine.Reindex(context.Background(), Request{TeamID: "team-1", FileID: fileID, ChunkSize: 100})
		require.Error(t, err)
		assert.Equal(t, "The specified key does not exist.", err.Error())
	})

	t.Run("invalid chunk parameters", func(t *testing.T) {
		emb := &staticEmbedder{}
		engine := New(texts, files, emb, memDocs{}, nil)
		_, err := engine.Reindex(context.Background(), Request{TeamID: "team-1", FileID: fileID, ChunkSize: 0})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Zero(t, emb.calls)
	})
}
