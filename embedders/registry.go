// Package embedders provides text embedding providers for semantic retrieval.
package embedders

import (
	"context"
	"fmt"

	"github.com/candralab/stanza/config"
	"github.com/candralab/stanza/registry"
)

// Embedder converts text into a dense vector.
type Embedder interface {
	// Embed returns the embedding vector for text
	Embed(ctx context.Context, text string) ([]float32, error)

	// GetDimension returns the expected embedding dimensionality, 0 if unknown
	GetDimension() int

	// GetModelName returns the model name
	GetModelName() string

	// Close releases embedder resources
	Close() error
}

// Registry manages named embedder instances.
type Registry struct {
	*registry.BaseRegistry[Embedder]
}

// NewRegistry creates an empty embedder registry.
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Embedder](),
	}
}

// RegisterEmbedder registers an embedder instance under a name.
func (r *Registry) RegisterEmbedder(name string, embedder Embedder) error {
	if name == "" {
		return fmt.Errorf("embedder name cannot be empty")
	}
	if embedder == nil {
		return fmt.Errorf("embedder cannot be nil")
	}
	return r.Register(name, embedder)
}

// NewEmbedderFromConfig builds an embedder from configuration.
func NewEmbedderFromConfig(cfg *config.EmbedderConfig) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder config: %w", err)
	}

	switch cfg.Type {
	case "ollama":
		return NewOllamaEmbedder(cfg), nil
	case "openai":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
}
