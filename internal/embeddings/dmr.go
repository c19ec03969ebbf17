package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// dmrSocketURL is the embeddings endpoint exposed by Docker Model Runner
// on the Docker Desktop socket.
const dmrSocketURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1/embeddings"

// DMR calls an OpenAI-compatible embeddings endpoint directly, either over
// the Docker Model Runner Unix socket or over TCP at BaseURL.
type DMR struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewDMR creates a Docker Model Runner embeddings client.
func NewDMR(config Config) (*DMR, error) {
	if config.SocketPath == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("socket path or base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	client := &DMR{
		httpClient: &http.Client{},
		apiKey:     config.APIKey,
		model:      config.Model,
	}

	if config.SocketPath != "" {
		socketPath := config.SocketPath
		client.httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		}
		client.endpoint = dmrSocketURL
	} else {
		client.endpoint = strings.TrimRight(config.BaseURL, "/") + "/embeddings"
	}

	return client, nil
}

// embeddingRequest is the request payload for the embeddings API.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding vector for the given text.
// Text exceeding MaxInputChars is truncated from the end.
func (c *DMR) Embed(ctx context.Context, text string) ([]float32, error) {
	input := truncate(text)
	slog.Debug("generating embedding", "provider", ProviderDMR, "original_len", runeLen(text), "truncated_len", runeLen(input))

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embResp.Data[0].Embedding, nil
}
