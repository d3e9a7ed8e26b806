// Package storage provides vector storage implementations for document embeddings.
package storage

import (
	"context"
	"math"
	"sort"
	"sync"

	"rag-system-api/internal/apperrors"
	"rag-system-api/internal/models"

	"github.com/google/uuid"
)

// VectorStore persists documents with their embeddings and answers
// nearest-neighbor queries. The store is the sole owner of persisted
// document data.
type VectorStore interface {
	// Insert stores the text with its embedding and metadata, generating
	// a fresh unique id. Fails with StoreUnavailable if the backend is
	// down and DimensionMismatch if the embedding dimension differs from
	// previously stored vectors.
	Insert(ctx context.Context, text string, embedding []float32, metadata map[string]interface{}) (string, error)

	// QueryNearest returns at most k hits ordered by increasing distance,
	// ties broken by insertion order. An empty store yields an empty
	// slice, not an error.
	QueryNearest(ctx context.Context, embedding []float32, k int) ([]models.SearchHit, error)

	// Count reports the number of stored documents.
	Count(ctx context.Context) (int, error)

	Close() error
}

type memoryEntry struct {
	doc models.Document
	seq int
}

// MemoryVectorStore is an in-memory VectorStore using exhaustive
// Euclidean-distance scan. Safe for concurrent use.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	entries   []memoryEntry
	dimension int
}

// NewMemoryVectorStore creates an empty in-memory store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{entries: make([]memoryEntry, 0)}
}

// Insert stores a document and returns its generated id.
func (m *MemoryVectorStore) Insert(_ context.Context, text string, embedding []float32, metadata map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(embedding)
	} else if len(embedding) != m.dimension {
		return "", apperrors.ErrDimensionMismatch.WithMessage(
			"cannot insert vector: dimension differs from stored documents")
	}

	doc := models.Document{
		ID:        uuid.NewString(),
		Text:      text,
		Metadata:  metadata,
		Embedding: append([]float32(nil), embedding...),
	}
	m.entries = append(m.entries, memoryEntry{doc: doc, seq: len(m.entries)})
	return doc.ID, nil
}

// QueryNearest scans all documents and returns the k nearest by
// Euclidean distance.
func (m *MemoryVectorStore) QueryNearest(_ context.Context, embedding []float32, k int) ([]models.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return []models.SearchHit{}, nil
	}
	if len(embedding) != m.dimension {
		return nil, apperrors.ErrDimensionMismatch.WithMessage(
			"query vector dimension differs from stored documents")
	}

	type scored struct {
		entry    memoryEntry
		distance float32
	}
	scores := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		scores = append(scores, scored{entry: e, distance: euclideanDistance(embedding, e.doc.Embedding)})
	}

	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].distance < scores[j].distance
	})

	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]models.SearchHit, 0, k)
	for _, s := range scores[:k] {
		hits = append(hits, models.SearchHit{
			Content:  s.entry.doc.Text,
			Score:    s.distance,
			Metadata: s.entry.doc.Metadata,
		})
	}
	return hits, nil
}

// Count reports the number of stored documents.
func (m *MemoryVectorStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryVectorStore) Close() error { return nil }

func euclideanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}
