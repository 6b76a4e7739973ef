package embedders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/internal/httpclient"
)

// OpenAIEmbedder implements Embedder for the OpenAI embeddings API.
type OpenAIEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder creates an OpenAI embedder from config.
func NewOpenAIEmbedder(cfg *config.EmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}
	return &OpenAIEmbedder{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}, nil
}

// Embed implements Embedder.Embed
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	request := openAIEmbedRequest{
		Model: e.config.Model,
		Input: text,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + e.config.APIKey,
	}

	resp, err := e.client.PostJSON(ctx, e.config.Host+"/embeddings", request, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI embeddings API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OpenAI embeddings error (status %d): %s", resp.StatusCode, string(body))
	}

	var response openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}
	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("OpenAI returned an empty embedding")
	}

	embedding := response.Data[0].Embedding
	if e.config.Dimension > 0 && len(embedding) != e.config.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d",
			e.config.Dimension, len(embedding))
	}
	return embedding, nil
}

// GetDimension implements Embedder.GetDimension
func (e *OpenAIEmbedder) GetDimension() int {
	return e.config.Dimension
}

// GetModelName implements Embedder.GetModelName
func (e *OpenAIEmbedder) GetModelName() string {
	return e.config.Model
}

// Close implements Embedder.Close
func (e *OpenAIEmbedder) Close() error {
	return nil
}
