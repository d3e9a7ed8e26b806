package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rag-system-api/internal/apperrors"
	"rag-system-api/internal/models"

	"go.uber.org/zap"
)

// mockService is a scriptable RAGService.
type mockService struct {
	ingestID   string
	ingestErr  error
	searchHits []models.SearchHit
	searchErr  error
	askAnswer  models.RagAnswer
	askErr     error
	count      int

	lastText       string
	lastQuery      string
	lastLimit      int
	lastQuestion   string
	lastMaxResults int
}

func (m *mockService) Ingest(_ context.Context, text string, _ map[string]interface{}) (string, error) {
	m.lastText = text
	return m.ingestID, m.ingestErr
}

func (m *mockService) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	m.lastQuery = query
	m.lastLimit = limit
	return m.searchHits, m.searchErr
}

func (m *mockService) Ask(_ context.Context, question string, maxResults int) (models.RagAnswer, error) {
	m.lastQuestion = question
	m.lastMaxResults = maxResults
	return m.askAnswer, m.askErr
}

func (m *mockService) DocumentCount(_ context.Context) (int, error) {
	return m.count, nil
}

func newTestServer(svc *mockService, token string) *Server {
	return NewServer(svc, zap.NewNop(), token)
}

func TestAddDocument(t *testing.T) {
	svc := &mockService{ingestID: "doc-123"}
	server := newTestServer(svc, "")

	body, _ := json.Marshal(models.AddDocumentRequest{
		Text:     "Tokyo is the capital of Japan.",
		Metadata: map[string]interface{}{"source": "geo"},
	})
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.AddDocumentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.ID != "doc-123" {
		t.Errorf("Expected id doc-123, got %q", resp.ID)
	}
	if svc.lastText != "Tokyo is the capital of Japan." {
		t.Errorf("Service received wrong text: %q", svc.lastText)
	}
}

func TestAddDocumentInvalidBody(t *testing.T) {
	server := newTestServer(&mockService{}, "")

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid input", apperrors.ErrInvalidInput.WithMessage("text too long"), http.StatusBadRequest},
		{"invalid range", apperrors.ErrInvalidRange, http.StatusBadRequest},
		{"provider down", apperrors.ErrProviderUnavailable.WithCause(errors.New("refused")), http.StatusInternalServerError},
		{"store down", apperrors.ErrStoreUnavailable, http.StatusInternalServerError},
		{"dimension mismatch", apperrors.ErrDimensionMismatch, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{ingestErr: tt.err}
			server := newTestServer(svc, "")

			body, _ := json.Marshal(models.AddDocumentRequest{Text: "text"})
			req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBuffer(body))
			w := httptest.NewRecorder()

			server.mux.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestSearch(t *testing.T) {
	svc := &mockService{searchHits: []models.SearchHit{
		{Content: "Tokyo is the capital of Japan.", Score: 0.12, Metadata: map[string]interface{}{"source": "geo"}},
	}}
	server := newTestServer(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/search?query=Japan&limit=1", nil)
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastQuery != "Japan" || svc.lastLimit != 1 {
		t.Errorf("Service received query=%q limit=%d", svc.lastQuery, svc.lastLimit)
	}

	var hits []models.SearchHit
	if err := json.Unmarshal(w.Body.Bytes(), &hits); err != nil {
		t.Fatalf("Failed to unmarshal hits: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "Tokyo is the capital of Japan." {
		t.Errorf("Unexpected hits: %+v", hits)
	}
}

func TestSearchNonIntegerLimit(t *testing.T) {
	server := newTestServer(&mockService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/search?query=Japan&limit=many", nil)
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-integer limit, got %d", w.Code)
	}
}

func TestSearchOmittedLimitPassesZero(t *testing.T) {
	svc := &mockService{searchHits: []models.SearchHit{}}
	server := newTestServer(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/search?query=Japan", nil)
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if svc.lastLimit != 0 {
		t.Errorf("Omitted limit should pass 0 for the pipeline default, got %d", svc.lastLimit)
	}
}

func TestChat(t *testing.T) {
	svc := &mockService{askAnswer: models.RagAnswer{
		Answer:     "The capital of Japan is Tokyo.",
		Sources:    []models.Source{{Content: "Tokyo is the capital of Japan.", Metadata: map[string]interface{}{"source": "geo"}}},
		ModelUsed:  "openai/gpt-3.5-turbo",
		TokensUsed: 42,
	}}
	server := newTestServer(svc, "")

	body, _ := json.Marshal(models.ChatRequest{Question: "What is the capital of Japan?", MaxResults: 3})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastQuestion != "What is the capital of Japan?" || svc.lastMaxResults != 3 {
		t.Errorf("Service received question=%q max_results=%d", svc.lastQuestion, svc.lastMaxResults)
	}

	var answer models.RagAnswer
	if err := json.Unmarshal(w.Body.Bytes(), &answer); err != nil {
		t.Fatalf("Failed to unmarshal answer: %v", err)
	}
	if answer.Answer != "The capital of Japan is Tokyo." {
		t.Errorf("Unexpected answer: %q", answer.Answer)
	}
	if answer.TokensUsed != 42 {
		t.Errorf("Expected 42 tokens, got %d", answer.TokensUsed)
	}
	if len(answer.Sources) != 1 {
		t.Errorf("Expected 1 source, got %d", len(answer.Sources))
	}
}

func TestChatDegradedAnswerIsStillOK(t *testing.T) {
	// Generation failures never become HTTP errors; the pipeline hands
	// back a degraded but well-formed answer.
	svc := &mockService{askAnswer: models.RagAnswer{
		Answer:     "could not reach the language model",
		Sources:    []models.Source{},
		ModelUsed:  "openai/gpt-3.5-turbo",
		TokensUsed: 0,
	}}
	server := newTestServer(svc, "")

	body, _ := json.Marshal(models.ChatRequest{Question: "anything"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Degraded answer must be 200, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(&mockService{count: 7}, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal health response: %v", err)
	}
	if resp.Status != "healthy" || resp.Documents != 7 {
		t.Errorf("Unexpected health response: %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(&mockService{}, "")

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/documents"},
		{http.MethodPost, "/search"},
		{http.MethodGet, "/chat"},
		{http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()

		server.mux.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tt.method, tt.path, w.Code)
		}
	}
}

func TestAuthToken(t *testing.T) {
	svc := &mockService{askAnswer: models.RagAnswer{Answer: "ok", Sources: []models.Source{}}}
	server := newTestServer(svc, "secret-token")

	body, _ := json.Marshal(models.ChatRequest{Question: "q"})

	// Missing header.
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	server.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", w.Code)
	}

	// Correct token.
	req = httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	server.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with correct token, got %d", w.Code)
	}

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	server.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Health must not require auth, got %d", w.Code)
	}
}
