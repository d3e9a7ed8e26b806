// Package rag sequences embedding, retrieval, prompt assembly and
// generation into the question-answering pipeline.
package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"rag-system-api/internal/apperrors"
	"rag-system-api/internal/embeddings"
	"rag-system-api/internal/llm"
	"rag-system-api/internal/models"
	"rag-system-api/internal/storage"

	"go.uber.org/zap"
)

// Canned answers for the pipeline's degraded success paths. Both are
// success-shaped: callers distinguish them by the empty sources list.
const (
	NoContextAnswer        = "no relevant context found"
	GenerationFailedAnswer = "could not reach the language model"
)

// Limits bounds caller-supplied input.
type Limits struct {
	MaxDocumentChars int
	MaxResults       int
	DefaultResults   int
}

// Pipeline is the request-scoped orchestrator. It holds no per-request
// state; concurrent calls are safe as long as the injected collaborators
// are.
type Pipeline struct {
	embedder embeddings.Provider
	store    storage.VectorStore
	llm      llm.Client
	logger   *zap.Logger
	limits   Limits
}

// NewPipeline wires the pipeline from its collaborators.
func NewPipeline(embedder embeddings.Provider, store storage.VectorStore, llmClient llm.Client, logger *zap.Logger, limits Limits) *Pipeline {
	if limits.MaxDocumentChars == 0 {
		limits.MaxDocumentChars = 5000
	}
	if limits.MaxResults == 0 {
		limits.MaxResults = 10
	}
	if limits.DefaultResults == 0 {
		limits.DefaultResults = 3
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		llm:      llmClient,
		logger:   logger,
		limits:   limits,
	}
}

// Ingest embeds the text and stores it with its metadata, returning the
// generated document id.
func (p *Pipeline) Ingest(ctx context.Context, text string, metadata map[string]interface{}) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperrors.ErrInvalidInput.WithMessage("document text must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > p.limits.MaxDocumentChars {
		return "", apperrors.ErrInvalidInput.WithMessage(
			fmt.Sprintf("document text exceeds the maximum length of %d characters", p.limits.MaxDocumentChars))
	}

	vectors, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", err
	}

	id, err := p.store.Insert(ctx, text, vectors[0], metadata)
	if err != nil {
		return "", err
	}

	p.logger.Info("document ingested", zap.String("id", id), zap.Int("chars", utf8.RuneCountInString(text)))
	return id, nil
}

// Search embeds the query and returns the nearest documents, most
// similar first. No generation is performed.
func (p *Pipeline) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.ErrInvalidInput.WithMessage("search query must not be empty")
	}
	limit, err := p.resolveResultCount(limit)
	if err != nil {
		return nil, err
	}

	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	return p.store.QueryNearest(ctx, vectors[0], limit)
}

// Ask runs the full pipeline: embed the question, retrieve context,
// assemble a grounded prompt, and generate an answer. Empty retrieval
// and generation-backend failures both produce degraded success-shaped
// answers; embedding and retrieval failures surface as errors.
func (p *Pipeline) Ask(ctx context.Context, question string, maxResults int) (models.RagAnswer, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return models.RagAnswer{}, apperrors.ErrInvalidInput.WithMessage("question must not be empty")
	}
	maxResults, err := p.resolveResultCount(maxResults)
	if err != nil {
		return models.RagAnswer{}, err
	}

	vectors, err := p.embedder.Embed(ctx, []string{trimmed})
	if err != nil {
		return models.RagAnswer{}, err
	}

	hits, err := p.store.QueryNearest(ctx, vectors[0], maxResults)
	if err != nil {
		return models.RagAnswer{}, err
	}

	if len(hits) == 0 {
		p.logger.Info("no context retrieved for question")
		return p.degradedAnswer(NoContextAnswer), nil
	}

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Content
	}
	prompt := BuildPrompt(trimmed, texts)

	result, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		// Retrieval succeeded; a degraded answer beats an opaque 500.
		// The absorbed failure is logged for operability.
		p.logger.Error("generation backend failure absorbed",
			zap.Error(err), zap.String("model", p.llm.Model()))
		return p.degradedAnswer(GenerationFailedAnswer), nil
	}

	sources := make([]models.Source, len(hits))
	for i, hit := range hits {
		sources[i] = models.Source{Content: hit.Content, Metadata: hit.Metadata}
	}

	return models.RagAnswer{
		Answer:     result.Answer,
		Sources:    sources,
		ModelUsed:  p.llm.Model(),
		TokensUsed: result.TokensUsed,
	}, nil
}

// DocumentCount reports the number of stored documents.
func (p *Pipeline) DocumentCount(ctx context.Context) (int, error) {
	return p.store.Count(ctx)
}

// resolveResultCount applies the default for an omitted count and
// enforces the configured range.
func (p *Pipeline) resolveResultCount(n int) (int, error) {
	if n == 0 {
		return p.limits.DefaultResults, nil
	}
	if n < 1 || n > p.limits.MaxResults {
		return 0, apperrors.ErrInvalidRange.WithMessage(
			fmt.Sprintf("result count must be between 1 and %d", p.limits.MaxResults))
	}
	return n, nil
}

func (p *Pipeline) degradedAnswer(answer string) models.RagAnswer {
	return models.RagAnswer{
		Answer:     answer,
		Sources:    []models.Source{},
		ModelUsed:  p.llm.Model(),
		TokensUsed: 0,
	}
}
