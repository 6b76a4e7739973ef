package llms

import (
	"context"
	"fmt"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/registry"
)

// ============================================================================
// LLM PROVIDER REGISTRY
// ============================================================================

// StreamChunk is one increment of a streaming generation. A chunk with a
// non-nil Err is terminal: the stream failed and no further text follows.
type StreamChunk struct {
	Text string
	Err  error
}

// Provider is the text generation interface. Implementations wrap a single
// upstream API and model.
type Provider interface {
	// Generate produces a completion for a pre-built prompt and reports the
	// token count of the response
	Generate(ctx context.Context, prompt string) (string, int, error)

	// GenerateStreaming produces a completion as a channel of chunks. The
	// channel is closed when generation finishes; a mid-stream failure is
	// delivered as a final chunk with Err set.
	GenerateStreaming(ctx context.Context, prompt string) (<-chan StreamChunk, error)

	// GetModelName returns the model name
	GetModelName() string

	// GetMaxTokens returns the maximum tokens for generation
	GetMaxTokens() int

	// GetTemperature returns the temperature setting
	GetTemperature() float64

	// Close releases provider resources
	Close() error
}

// Registry manages named provider instances.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

// RegisterProvider registers a provider instance under a name.
func (r *Registry) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	return r.Register(name, provider)
}

// NewProviderFromConfig builds a provider from configuration. The config is
// defaulted and validated first.
func NewProviderFromConfig(cfg *config.LLMConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	switch cfg.Type {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm type: %s", cfg.Type)
	}
}
