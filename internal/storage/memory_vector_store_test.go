package storage

import (
	"context"
	"errors"
	"testing"

	"rag-system-api/internal/apperrors"
)

func TestMemoryStoreInsertGeneratesUniqueIDs(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		id, err := store.Insert(ctx, "doc", []float32{float32(i), 0, 0}, nil)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("Duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestMemoryStoreQueryNearestOrdering(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	// Distances from the query {0,0,0}: far=5, near=1, mid=3.
	mustInsert(t, store, "far", []float32{5, 0, 0})
	mustInsert(t, store, "near", []float32{1, 0, 0})
	mustInsert(t, store, "mid", []float32{3, 0, 0})

	hits, err := store.QueryNearest(ctx, []float32{0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}

	want := []string{"near", "mid", "far"}
	if len(hits) != len(want) {
		t.Fatalf("Expected %d hits, got %d", len(want), len(hits))
	}
	for i, w := range want {
		if hits[i].Content != w {
			t.Errorf("Hit %d: expected %q, got %q", i, w, hits[i].Content)
		}
		if i > 0 && hits[i].Score < hits[i-1].Score {
			t.Errorf("Hit %d: distance %v decreased from %v", i, hits[i].Score, hits[i-1].Score)
		}
	}
}

func TestMemoryStoreTiesBreakByInsertionOrder(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	// Both vectors are equidistant from the query.
	mustInsert(t, store, "first", []float32{2, 0, 0})
	mustInsert(t, store, "second", []float32{0, 2, 0})

	hits, err := store.QueryNearest(ctx, []float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].Content != "first" || hits[1].Content != "second" {
		t.Errorf("Tie not broken by insertion order: got %q, %q", hits[0].Content, hits[1].Content)
	}
}

func TestMemoryStoreQueryNearestBoundedByK(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustInsert(t, store, "doc", []float32{float32(i), 0, 0})
	}

	hits, err := store.QueryNearest(ctx, []float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("Expected 2 hits, got %d", len(hits))
	}

	// k larger than the store returns everything.
	hits, err = store.QueryNearest(ctx, []float32{0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("QueryNearest failed: %v", err)
	}
	if len(hits) != 5 {
		t.Errorf("Expected 5 hits, got %d", len(hits))
	}
}

func TestMemoryStoreEmptyQueryReturnsNoHits(t *testing.T) {
	store := NewMemoryVectorStore()

	hits, err := store.QueryNearest(context.Background(), []float32{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("Empty store query must not fail: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected no hits from empty store, got %d", len(hits))
	}
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	mustInsert(t, store, "doc", []float32{1, 2, 3})

	if _, err := store.Insert(ctx, "bad", []float32{1, 2}, nil); !errors.Is(err, apperrors.ErrDimensionMismatch) {
		t.Errorf("Expected DimensionMismatch on insert, got %v", err)
	}
	if _, err := store.QueryNearest(ctx, []float32{1, 2}, 1); !errors.Is(err, apperrors.ErrDimensionMismatch) {
		t.Errorf("Expected DimensionMismatch on query, got %v", err)
	}
}

func TestMemoryStoreCount(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	count, err := store.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("Expected empty count, got %d (%v)", count, err)
	}

	mustInsert(t, store, "doc", []float32{1, 0, 0})
	count, err = store.Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("Expected count 1, got %d (%v)", count, err)
	}
}

func mustInsert(t *testing.T, store VectorStore, text string, embedding []float32) string {
	t.Helper()
	id, err := store.Insert(context.Background(), text, embedding, map[string]interface{}{"source": "test"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return id
}
