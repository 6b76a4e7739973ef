// Package retrieval ranks embedded documents by cosine similarity to ground
// generation in retrieved context.
package retrieval

import (
	"context"
	"fmt"

	"github.com/candralab/stanza/config"
)

// ============================================================================
// RETRIEVAL ENGINE
// ============================================================================

// Document is one embedded text unit.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Engine stores embedded documents and answers similarity queries.
type Engine interface {
	// Add stores a document. All embeddings in one engine must share the
	// same dimensionality.
	Add(ctx context.Context, doc Document) error

	// Search returns up to topK documents ranked by cosine similarity to
	// the query embedding, best first. Documents below the engine's
	// similarity threshold are excluded.
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)

	// Remove deletes a document by id. Removing a missing id is not an
	// error.
	Remove(ctx context.Context, id string) error

	// Count returns the number of stored documents
	Count() int

	// Close releases engine resources
	Close() error
}

// RetrievalError represents errors in retrieval operations
type RetrievalError struct {
	Operation string
	Message   string
	Err       error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[retrieval:%s] %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[retrieval:%s] %s", e.Operation, e.Message)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError creates a new retrieval error
func NewRetrievalError(operation, message string, err error) *RetrievalError {
	return &RetrievalError{Operation: operation, Message: message, Err: err}
}

// NewEngineFromConfig builds an engine from configuration.
func NewEngineFromConfig(cfg *config.RetrievalConfig) (Engine, error) {
	if cfg == nil {
		return nil, NewRetrievalError("NewEngineFromConfig", "retrieval config cannot be nil", nil)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, NewRetrievalError("NewEngineFromConfig", "invalid retrieval config", err)
	}

	switch cfg.Provider {
	case "memory":
		return NewMemoryEngine(cfg.SimilarityThreshold), nil
	case "chromem":
		return NewChromemEngine(cfg.PersistPath, cfg.SimilarityThreshold)
	default:
		return nil, NewRetrievalError("NewEngineFromConfig",
			fmt.Sprintf("unsupported retrieval provider: %s", cfg.Provider), nil)
	}
}
