// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"rag-system-api/internal/apperrors"
	"rag-system-api/internal/auth"
	"rag-system-api/internal/models"

	"github.com/ory/herodot"
	"go.uber.org/zap"
)

// RAGService is the pipeline surface the server depends on.
type RAGService interface {
	Ingest(ctx context.Context, text string, metadata map[string]interface{}) (string, error)
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	Ask(ctx context.Context, question string, maxResults int) (models.RagAnswer, error)
	DocumentCount(ctx context.Context) (int, error)
}

type Server struct {
	mux    *http.ServeMux
	svc    RAGService
	writer *herodot.JSONWriter
	logger *zap.Logger
	token  string
}

// NewServer builds the HTTP surface over the given pipeline. An empty
// token leaves the API unauthenticated.
func NewServer(svc RAGService, logger *zap.Logger, token string) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		svc:    svc,
		writer: herodot.NewJSONWriter(nil),
		logger: logger,
		token:  token,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.Handle("/documents", auth.Middleware(s.token, http.HandlerFunc(s.addDocument)))
	s.mux.Handle("/search", auth.Middleware(s.token, http.HandlerFunc(s.searchDocuments)))
	s.mux.Handle("/chat", auth.Middleware(s.token, http.HandlerFunc(s.chat)))
	s.mux.HandleFunc("/health", s.healthCheck)
}

// Handler returns the server's root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

func (s *Server) addDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req models.AddDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	id, err := s.svc.Ingest(r.Context(), req.Text, req.Metadata)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	response := &models.AddDocumentResponse{
		ID:      id,
		Message: "Document added successfully",
	}
	s.writer.WriteCreated(w, r, "", response)
}

func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("query")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("limit must be an integer"))
			return
		}
		limit = parsed
	}

	hits, err := s.svc.Search(r.Context(), query, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writer.Write(w, r, hits)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	answer, err := s.svc.Ask(r.Context(), req.Question, req.MaxResults)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writer.Write(w, r, answer)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	count, err := s.svc.DocumentCount(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.HealthResponse{Status: "healthy", Documents: count})
}

// writeServiceError maps the pipeline's tagged errors onto HTTP
// responses: caller faults become 400s, infrastructure faults 500s.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.KindInvalidInput, apperrors.KindInvalidRange:
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason(appErr.Message))
			return
		case apperrors.KindProviderUnavailable:
			s.logger.Error("embedding provider failure", zap.Error(err))
			s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to generate embedding"))
			return
		case apperrors.KindStoreUnavailable:
			s.logger.Error("document store failure", zap.Error(err))
			s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Document store unavailable"))
			return
		case apperrors.KindDimensionMismatch:
			s.logger.Error("embedding dimension mismatch", zap.Error(err))
			s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Embedding configuration error"))
			return
		}
	}

	s.logger.Error("unexpected failure", zap.Error(err))
	s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("An unexpected error occurred"))
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr))
		next.ServeHTTP(w, r)
	})
}
