// Package models defines the data types shared across the pipeline.
package models

// Document is a stored text with its embedding and caller-supplied
// metadata. Documents are immutable after ingestion; the store owns them.
type Document struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"-"`
}

// SearchHit is one result of a nearest-neighbor query. Score is a
// distance: lower means more similar.
type SearchHit struct {
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Source is a retrieved document surfaced alongside a generated answer.
type Source struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// RagAnswer is the result of the full question-answering pipeline.
type RagAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	ModelUsed  string   `json:"model_used"`
	TokensUsed int      `json:"tokens_used"`
}
