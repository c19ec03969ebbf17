package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
)

// OpenAI generates embeddings through an OpenAI-compatible API.
type OpenAI struct {
	embedder einoEmbedding.Embedder
	model    string
}

// NewOpenAI creates an OpenAI embeddings client.
func NewOpenAI(ctx context.Context, config Config) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	embedder, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  config.APIKey,
		BaseURL: baseURL,
		Model:   config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create openai embedder: %w", err)
	}

	return &OpenAI{embedder: embedder, model: config.Model}, nil
}

// Embed generates an embedding vector for the given text.
// Text exceeding MaxInputChars is truncated from the end.
func (c *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	input := truncate(text)
	slog.Debug("generating embedding", "provider", ProviderOpenAI, "model", c.model, "original_len", runeLen(text), "truncated_len", runeLen(input))

	vectors, err := c.embedder.EmbedStrings(ctx, []string{input})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	result := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		result[i] = float32(v)
	}

	return result, nil
}
