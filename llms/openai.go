package llms

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/internal/httpclient"
	"github.com/candralab/stanza/utils"
)

// ============================================================================
// OPENAI PROVIDER
// ============================================================================

// OpenAIProvider implements Provider for the OpenAI chat completions API.
type OpenAIProvider struct {
	config *config.LLMConfig
	client *httpclient.Client
}

// openAIRequest is the request payload for /chat/completions
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider creates an OpenAI provider from config.
func NewOpenAIProvider(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}
	return &OpenAIProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}, nil
}

// Generate implements Provider.Generate
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, int, error) {
	resp, err := p.call(ctx, prompt, false)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var response openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", 0, fmt.Errorf("failed to decode OpenAI response: %w", err)
	}
	if response.Error != nil {
		return "", 0, fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", 0, fmt.Errorf("OpenAI returned no choices")
	}

	content := response.Choices[0].Message.Content
	tokensUsed := response.Usage.CompletionTokens
	if tokensUsed == 0 {
		tokensUsed = utils.EstimateTokens(content)
	}
	return content, tokensUsed, nil
}

// GenerateStreaming implements Provider.GenerateStreaming
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)

	go func() {
		defer close(ch)
		if err := p.stream(ctx, prompt, ch); err != nil {
			select {
			case ch <- StreamChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// GetModelName implements Provider.GetModelName
func (p *OpenAIProvider) GetModelName() string {
	return p.config.Model
}

// GetMaxTokens implements Provider.GetMaxTokens
func (p *OpenAIProvider) GetMaxTokens() int {
	return p.config.MaxTokens
}

// GetTemperature implements Provider.GetTemperature
func (p *OpenAIProvider) GetTemperature() float64 {
	return p.config.Temperature
}

// Close implements Provider.Close
func (p *OpenAIProvider) Close() error {
	return nil
}

func (p *OpenAIProvider) call(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stream:      stream,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + p.config.APIKey,
	}

	resp, err := p.client.PostJSON(ctx, p.config.Host+"/chat/completions", request, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (p *OpenAIProvider) stream(ctx context.Context, prompt string, ch chan<- StreamChunk) error {
	resp, err := p.call(ctx, prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SSE format: "data: {json}" lines terminated by "data: [DONE]"
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk openAIStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("failed to decode streaming response: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("OpenAI API error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			select {
			case ch <- StreamChunk{Text: choice.Delta.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if choice.FinishReason != "" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read streaming response: %w", err)
	}
	return nil
}
