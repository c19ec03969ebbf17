package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/taishikato/supavec-api/pkg/models"
)

// DefaultDims matches OpenAI text-embedding-3-small.
const DefaultDims = 1536

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	Dims      int // embedding vector size
}

// Client wraps the Elasticsearch client with chunk document operations.
type Client struct {
	es    *elasticsearch.Client
	index string
	dims  int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	dims := config.Dims
	if dims <= 0 {
		dims = DefaultDims
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
		dims:  dims,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping returns the mapping for chunk documents.
func indexMapping(dims int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":      map[string]any{"type": "keyword"},
				"content": map[string]any{"type": "text"},
				"metadata": map[string]any{
					"properties": map[string]any{
						"source":  map[string]any{"type": "keyword"},
						"file_id": map[string]any{"type": "keyword"},
					},
				},
				"chunk_index": map[string]any{"type": "integer"},
				"created_at":  map[string]any{"type": "date"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(indexMapping(c.dims))
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexDocument writes one chunk document. The document ID is
// deterministic, so writing the same chunk again replaces it.
func (c *Client) IndexDocument(ctx context.Context, doc models.Document) error {
	if doc.ID == "" {
		doc.ID = models.DocumentID(doc.Metadata.FileID, doc.ChunkIndex)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(doc.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// DeleteByFileID removes every document belonging to fileID.
func (c *Client) DeleteByFileID(ctx context.Context, fileID string) error {
	return c.deleteByQuery(ctx, map[string]any{
		"term": map[string]any{"metadata.file_id": fileID},
	})
}

// DeleteChunksFrom removes the documents of fileID whose chunk_index is at
// least fromIndex, the leftovers of an earlier run that produced more chunks.
func (c *Client) DeleteChunksFrom(ctx context.Context, fileID string, fromIndex int) error {
	return c.deleteByQuery(ctx, map[string]any{
		"bool": map[string]any{
			"filter": []map[string]any{
				{"term": map[string]any{"metadata.file_id": fileID}},
				{"range": map[string]any{"chunk_index": map[string]any{"gte": fromIndex}}},
			},
		},
	})
}

func (c *Client) deleteByQuery(ctx context.Context, query map[string]any) error {
	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(body),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return fmt.Errorf("delete by query failed: %w", err)
	}
	defer res.Body.Close()

	// A missing index has nothing to delete.
	if res.StatusCode == 404 {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("delete by query error: %s", res.String())
	}

	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// fileFilter restricts a query to the given files. No files means no filter.
func fileFilter(fileIDs []string) []map[string]any {
	if len(fileIDs) == 0 {
		return nil
	}
	return []map[string]any{
		{"terms": map[string]any{"metadata.file_id": fileIDs}},
	}
}

func textQuery(query string, fileIDs []string) map[string]any {
	boolQuery := map[string]any{
		"must": map[string]any{
			"match": map[string]any{"content": query},
		},
	}
	if filter := fileFilter(fileIDs); filter != nil {
		boolQuery["filter"] = filter
	}
	return map[string]any{"bool": boolQuery}
}

// searchBody builds a BM25 query over chunk content.
func searchBody(query string, fileIDs []string, limit int) map[string]any {
	return map[string]any{
		"query":   textQuery(query, fileIDs),
		"size":    limit,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}
}

// hybridBody combines BM25 and kNN results with reciprocal rank fusion.
func hybridBody(query string, queryEmbedding []float32, fileIDs []string, limit int) map[string]any {
	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   queryEmbedding,
		"k":              limit,
		"num_candidates": limit * 2,
	}
	if filter := fileFilter(fileIDs); filter != nil {
		knn["filter"] = filter
	}

	return map[string]any{
		"retriever": map[string]any{
			"rrf": map[string]any{
				"retrievers": []map[string]any{
					{"standard": map[string]any{"query": textQuery(query, fileIDs)}},
					{"knn": knn},
				},
			},
		},
		"size":    limit,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}
}

// Search performs a BM25 text search over chunk content, optionally
// restricted to fileIDs.
func (c *Client) Search(ctx context.Context, query string, fileIDs []string, limit int) ([]models.Document, error) {
	return c.search(ctx, searchBody(query, fileIDs, limit))
}

// HybridSearch performs a combined BM25 + vector search.
// If queryEmbedding is nil, falls back to BM25 only.
func (c *Client) HybridSearch(ctx context.Context, query string, queryEmbedding []float32, fileIDs []string, limit int) ([]models.Document, error) {
	if queryEmbedding == nil {
		return c.Search(ctx, query, fileIDs, limit)
	}
	return c.search(ctx, hybridBody(query, queryEmbedding, fileIDs, limit))
}

func (c *Client) search(ctx context.Context, body map[string]any) ([]models.Document, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]models.Document, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		docs[i] = hit.Source
	}

	return docs, nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool            `json:"found"`
	Source models.Document `json:"_source"`
}

// GetDocument retrieves a document by ID. A missing document returns nil.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	res, err := c.es.Get(
		c.index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}
