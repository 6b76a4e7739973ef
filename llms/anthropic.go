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
// ANTHROPIC PROVIDER
// ============================================================================

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements Provider for the Anthropic messages API.
type AnthropicProvider struct {
	config *config.LLMConfig
	client *httpclient.Client
}

// anthropicRequest is the request payload for /v1/messages
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// anthropicStreamEvent covers the event types carried in the SSE stream.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// NewAnthropicProvider creates an Anthropic provider from config.
func NewAnthropicProvider(cfg *config.LLMConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Anthropic")
	}
	return &AnthropicProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		),
	}, nil
}

// Generate implements Provider.Generate
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, int, error) {
	resp, err := p.call(ctx, prompt, false)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var response anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", 0, fmt.Errorf("failed to decode Anthropic response: %w", err)
	}
	if response.Error != nil {
		return "", 0, fmt.Errorf("Anthropic API error: %s", response.Error.Message)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()

	tokensUsed := response.Usage.OutputTokens
	if tokensUsed == 0 {
		tokensUsed = utils.EstimateTokens(content)
	}
	return content, tokensUsed, nil
}

// GenerateStreaming implements Provider.GenerateStreaming
func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
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
func (p *AnthropicProvider) GetModelName() string {
	return p.config.Model
}

// GetMaxTokens implements Provider.GetMaxTokens
func (p *AnthropicProvider) GetMaxTokens() int {
	return p.config.MaxTokens
}

// GetTemperature implements Provider.GetTemperature
func (p *AnthropicProvider) GetTemperature() float64 {
	return p.config.Temperature
}

// Close implements Provider.Close
func (p *AnthropicProvider) Close() error {
	return nil
}

func (p *AnthropicProvider) call(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	request := anthropicRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Stream:      stream,
	}
	headers := map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := p.client.PostJSON(ctx, p.config.Host+"/v1/messages", request, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to call Anthropic API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("Anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (p *AnthropicProvider) stream(ctx context.Context, prompt string, ch chan<- StreamChunk) error {
	resp, err := p.call(ctx, prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return fmt.Errorf("failed to decode streaming response: %w", err)
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				select {
				case ch <- StreamChunk{Text: event.Delta.Text}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read streaming response: %w", err)
	}
	return nil
}
