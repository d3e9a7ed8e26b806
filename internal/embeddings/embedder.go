// Package embeddings converts text into fixed-dimension vectors using an
// Ollama embedding model.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"rag-system-api/internal/apperrors"
)

// Provider produces one embedding vector per input text, in input order.
// Implementations must be deterministic for a fixed model configuration.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedder calls the Ollama embeddings endpoint for each text in a
// batch. The vector dimension is pinned on the first successful call and
// is invariant for the process lifetime.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu        sync.Mutex
	dimension int
}

// NewOllamaEmbedder creates an embedder backed by the Ollama server at
// baseURL using the given embedding model.
func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured embedding model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Dimension returns the pinned vector dimension, or 0 before the first
// successful call.
func (e *OllamaEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Embed returns one vector per input text, preserving order. An empty
// input yields an empty result without calling the backend.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := e.checkDimension(vec); err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model":  e.model,
		"prompt": text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperrors.ErrProviderUnavailable.WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, apperrors.ErrProviderUnavailable.WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrProviderUnavailable.WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrProviderUnavailable.WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ErrProviderUnavailable.WithCause(
			fmt.Errorf("embedding request failed: %s", resp.Status))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.ErrProviderUnavailable.WithCause(err)
	}

	if len(result.Embedding) == 0 {
		return nil, apperrors.ErrProviderUnavailable.WithCause(
			fmt.Errorf("no embedding returned for model %s", e.model))
	}

	return result.Embedding, nil
}

// checkDimension pins the vector dimension on the first call and rejects
// any later change.
func (e *OllamaEmbedder) checkDimension(vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dimension == 0 {
		e.dimension = len(vec)
		return nil
	}
	if len(vec) != e.dimension {
		return apperrors.ErrDimensionMismatch.WithCause(
			fmt.Errorf("provider returned %d dimensions, expected %d", len(vec), e.dimension))
	}
	return nil
}
