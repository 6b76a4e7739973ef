package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ============================================================================
// CHROMEM ENGINE
// ============================================================================

const chromemCollection = "documents"

// ChromemEngine stores documents in an embedded chromem-go database with
// optional file persistence. No external services required.
type ChromemEngine struct {
	db         *chromem.DB
	collection *chromem.Collection
	threshold  float64
	mu         sync.RWMutex
}

// NewChromemEngine creates a chromem-backed engine. With an empty
// persistPath the database is memory-only.
func NewChromemEngine(persistPath string, threshold float64) (*ChromemEngine, error) {
	var db *chromem.DB
	var err error

	if persistPath != "" {
		if err := os.MkdirAll(filepath.Dir(persistPath), 0755); err != nil {
			return nil, NewRetrievalError("NewChromemEngine", "failed to create persist directory", err)
		}
		db, err = chromem.NewPersistentDB(persistPath, true)
		if err != nil {
			return nil, NewRetrievalError("NewChromemEngine", "failed to open persistent db", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are pre-computed by the embedder, never by chromem
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	collection, err := db.GetOrCreateCollection(chromemCollection, nil, identityEmbed)
	if err != nil {
		return nil, NewRetrievalError("NewChromemEngine", "failed to create collection", err)
	}

	return &ChromemEngine{
		db:         db,
		collection: collection,
		threshold:  threshold,
	}, nil
}

// Add implements Engine.Add
func (c *ChromemEngine) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return NewRetrievalError("Add", "document id cannot be empty", nil)
	}
	if len(doc.Embedding) == 0 {
		return NewRetrievalError("Add",
			fmt.Sprintf("document %q has an empty embedding", doc.ID), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chromemDoc := chromem.Document{
		ID:        doc.ID,
		Content:   doc.Text,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
	}
	if err := c.collection.AddDocuments(ctx, []chromem.Document{chromemDoc}, runtime.NumCPU()); err != nil {
		return NewRetrievalError("Add", "failed to store document", err)
	}
	return nil
}

// Search implements Engine.Search
func (c *ChromemEngine) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, NewRetrievalError("Search", "query embedding cannot be empty", nil)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem rejects queries asking for more results than stored
	if count := c.collection.Count(); topK > count {
		topK = count
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, NewRetrievalError("Search", "query failed", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < c.threshold {
			continue
		}
		out = append(out, SearchResult{
			Document: Document{
				ID:        r.ID,
				Text:      r.Content,
				Embedding: r.Embedding,
				Metadata:  r.Metadata,
			},
			Score: score,
		})
	}
	return out, nil
}

// Remove implements Engine.Remove
func (c *ChromemEngine) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.collection.Delete(ctx, nil, nil, id); err != nil {
		return NewRetrievalError("Remove", "failed to delete document", err)
	}
	return nil
}

// Count implements Engine.Count
func (c *ChromemEngine) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.Count()
}

// Close implements Engine.Close
func (c *ChromemEngine) Close() error {
	return nil
}
