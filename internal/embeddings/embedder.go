package embeddings

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderDMR    = "dmr"
)

// MaxInputChars limits input to stay within the model context window.
// Longer text is truncated from the end before embedding.
const MaxInputChars = 20000

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds embeddings client configuration.
type Config struct {
	Provider   string // "openai" or "dmr"
	BaseURL    string // OpenAI-compatible API root, e.g. "https://api.openai.com/v1"
	APIKey     string
	SocketPath string // Unix socket path for Docker Model Runner
	Model      string
}

// New creates the embedder for config.Provider.
func New(ctx context.Context, config Config) (Embedder, error) {
	switch config.Provider {
	case "", ProviderOpenAI:
		return NewOpenAI(ctx, config)
	case ProviderDMR:
		return NewDMR(config)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", config.Provider)
	}
}

// truncate cuts text to at most MaxInputChars characters without
// splitting a multi-byte character.
func truncate(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxInputChars {
			return text[:i]
		}
		n++
	}
	return text
}

// Dimensions returns the expected embedding dimensions for common models.
func Dimensions(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "ai/embeddinggemma":
		return 768
	case "ai/snowflake-arctic-embed":
		return 1024
	case "ai/qwen3-embedding":
		return 2560
	default:
		return 1536
	}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
