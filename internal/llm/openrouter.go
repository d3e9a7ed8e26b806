// Package llm invokes an OpenAI-compatible chat backend to generate
// grounded answers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// systemInstruction pins generation to the supplied context only.
const systemInstruction = "You are a helpful assistant that answers questions using only the supplied context."

// Result is a generated answer with its usage accounting. TokensUsed is
// 0 when the backend omits usage.
type Result struct {
	Answer     string
	TokensUsed int
}

// Client generates an answer for an assembled prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (Result, error)
	Model() string
}

// Options configures the OpenRouter client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// OpenRouterClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenRouterClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewOpenRouterClient creates a chat client from the given options,
// filling in OpenRouter defaults for anything unset.
func NewOpenRouterClient(opts Options) *OpenRouterClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openrouter.ai/api/v1"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 512
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		client:      &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model slug.
func (c *OpenRouterClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends the prompt as the user turn with a fixed system
// instruction and returns the first choice. Errors are returned to the
// caller; the orchestrator decides whether they are fatal.
func (c *OpenRouterClient) Generate(ctx context.Context, prompt string) (Result, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("chat completion failed: %s", resp.Status)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("malformed chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("chat response contained no choices")
	}

	return Result{
		Answer:     strings.TrimSpace(parsed.Choices[0].Message.Content),
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
