package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ============================================================================
// IN-MEMORY ENGINE
// ============================================================================

// MemoryEngine is the default engine: documents live in process memory and
// queries do a linear cosine-similarity scan. Safe for concurrent use.
type MemoryEngine struct {
	mu        sync.RWMutex
	docs      []Document
	threshold float64

	// dimension is fixed by the first added document
	dimension int
}

// NewMemoryEngine creates an empty in-memory engine with the given
// similarity threshold.
func NewMemoryEngine(threshold float64) *MemoryEngine {
	return &MemoryEngine{threshold: threshold}
}

// Add implements Engine.Add
func (m *MemoryEngine) Add(_ context.Context, doc Document) error {
	if doc.ID == "" {
		return NewRetrievalError("Add", "document id cannot be empty", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(doc.Embedding) > 0 {
		if m.dimension == 0 {
			m.dimension = len(doc.Embedding)
		} else if len(doc.Embedding) != m.dimension {
			return NewRetrievalError("Add",
				fmt.Sprintf("embedding dimension mismatch: collection has %d, document %q has %d",
					m.dimension, doc.ID, len(doc.Embedding)), nil)
		}
	}

	// Same id replaces the stored document
	for i, existing := range m.docs {
		if existing.ID == doc.ID {
			m.docs[i] = doc
			return nil
		}
	}
	m.docs = append(m.docs, doc)
	return nil
}

// Search implements Engine.Search
func (m *MemoryEngine) Search(_ context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, NewRetrievalError("Search", "query embedding cannot be empty", nil)
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.docs))
	for _, doc := range m.docs {
		// Documents without an embedding never rank
		if len(doc.Embedding) == 0 {
			continue
		}
		score := CosineSimilarity(doc.Embedding, query)
		if score < m.threshold {
			continue
		}
		results = append(results, SearchResult{Document: doc, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Remove implements Engine.Remove
func (m *MemoryEngine) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, doc := range m.docs {
		if doc.ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Clear removes all documents.
func (m *MemoryEngine) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
	m.dimension = 0
}

// Count implements Engine.Count
func (m *MemoryEngine) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Close implements Engine.Close
func (m *MemoryEngine) Close() error {
	return nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Accumulation is done in float64 for numeric stability.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
