package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/internal/httpclient"
	"github.com/candralab/stanza/utils"
)

// ============================================================================
// OLLAMA LLM PROVIDER
// ============================================================================

// OllamaProvider implements Provider against a local or remote Ollama server.
type OllamaProvider struct {
	config *config.LLMConfig
	client *httpclient.Client
}

// NewOllamaProvider creates an Ollama provider from config.
func NewOllamaProvider(cfg *config.LLMConfig) *OllamaProvider {
	return &OllamaProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		),
	}
}

// Generate implements Provider.Generate
func (o *OllamaProvider) Generate(ctx context.Context, prompt string) (string, int, error) {
	resp, err := o.call(ctx, prompt, false)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var response struct {
		Response  string `json:"response"`
		Done      bool   `json:"done"`
		EvalCount int    `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", 0, fmt.Errorf("failed to decode Ollama response: %w", err)
	}

	tokensUsed := response.EvalCount
	if tokensUsed == 0 {
		tokensUsed = utils.EstimateTokens(response.Response)
	}
	return response.Response, tokensUsed, nil
}

// GenerateStreaming implements Provider.GenerateStreaming
func (o *OllamaProvider) GenerateStreaming(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)

	go func() {
		defer close(ch)
		if err := o.stream(ctx, prompt, ch); err != nil {
			select {
			case ch <- StreamChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// GetModelName implements Provider.GetModelName
func (o *OllamaProvider) GetModelName() string {
	return o.config.Model
}

// GetMaxTokens implements Provider.GetMaxTokens
func (o *OllamaProvider) GetMaxTokens() int {
	return o.config.MaxTokens
}

// GetTemperature implements Provider.GetTemperature
func (o *OllamaProvider) GetTemperature() float64 {
	return o.config.Temperature
}

// Close implements Provider.Close
func (o *OllamaProvider) Close() error {
	// Ollama doesn't require explicit closing
	return nil
}

func (o *OllamaProvider) call(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	payload := map[string]interface{}{
		"model":  o.config.Model,
		"prompt": prompt,
		"stream": stream,
		"options": map[string]interface{}{
			"temperature": o.config.Temperature,
			"num_predict": o.config.MaxTokens,
		},
	}

	resp, err := o.client.PostJSON(ctx, o.config.Host+"/api/generate", payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (o *OllamaProvider) stream(ctx context.Context, prompt string, ch chan<- StreamChunk) error {
	resp, err := o.call(ctx, prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
		}
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode streaming response: %w", err)
		}

		if chunk.Response != "" {
			select {
			case ch <- StreamChunk{Text: chunk.Response}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if chunk.Done {
			break
		}
	}
	return nil
}
