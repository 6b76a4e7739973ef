package embedders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/internal/httpclient"
)

// Global mutex to serialize Ollama embedding requests.
// Ollama's llama runner crashes when receiving concurrent embedding requests.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder implements Embedder against an Ollama server.
type OllamaEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama embedder from config.
func NewOllamaEmbedder(cfg *config.EmbedderConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		),
	}
}

// Embed implements Embedder.Embed
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	request := ollamaEmbedRequest{
		Model:  e.config.Model,
		Prompt: text,
	}

	resp, err := e.client.PostJSON(ctx, e.config.Host+"/api/embeddings", request, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama embeddings API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Ollama embeddings error (status %d): %s", resp.StatusCode, string(body))
	}

	var response ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("Ollama returned an empty embedding")
	}
	if e.config.Dimension > 0 && len(response.Embedding) != e.config.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d",
			e.config.Dimension, len(response.Embedding))
	}
	return response.Embedding, nil
}

// GetDimension implements Embedder.GetDimension
func (e *OllamaEmbedder) GetDimension() int {
	return e.config.Dimension
}

// GetModelName implements Embedder.GetModelName
func (e *OllamaEmbedder) GetModelName() string {
	return e.config.Model
}

// Close implements Embedder.Close
func (e *OllamaEmbedder) Close() error {
	return nil
}
