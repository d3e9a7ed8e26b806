// RAG System API stores documents, searches them by semantic similarity,
// and answers questions grounded in retrieved context.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-system-api/internal/api"
	"rag-system-api/internal/config"
	"rag-system-api/internal/embeddings"
	"rag-system-api/internal/llm"
	"rag-system-api/internal/rag"
	"rag-system-api/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing vector store", zap.Error(err))
		}
	}()

	embedder := embeddings.NewOllamaEmbedder(
		cfg.Services.Ollama.BaseURL,
		cfg.Services.Ollama.EmbeddingModel,
		time.Duration(cfg.Services.Ollama.Timeout)*time.Second,
	)

	llmClient := llm.NewOpenRouterClient(llm.Options{
		BaseURL:     cfg.Services.OpenRouter.BaseURL,
		APIKey:      cfg.Services.OpenRouter.APIKey,
		Model:       cfg.Services.OpenRouter.Model,
		MaxTokens:   cfg.Services.OpenRouter.MaxTokens,
		Temperature: cfg.Services.OpenRouter.Temperature,
		Timeout:     time.Duration(cfg.Services.OpenRouter.Timeout) * time.Second,
	})

	pipeline := rag.NewPipeline(embedder, store, llmClient, logger, rag.Limits{
		MaxDocumentChars: cfg.Limits.MaxDocumentChars,
		MaxResults:       cfg.Limits.MaxResults,
		DefaultResults:   cfg.Limits.DefaultResults,
	})

	server := api.NewServer(pipeline, logger, cfg.Security.APIToken)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (storage.VectorStore, error) {
	switch cfg.Database.Driver {
	case "memory":
		return storage.NewMemoryVectorStore(), nil
	default:
		return storage.NewSQLiteVectorStore(cfg.Database.Path)
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.App.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.App.LogFormat == "json" {
		zapCfg.Encoding = "json"
	} else {
		zapCfg.Encoding = "console"
	}

	return zapCfg.Build()
}
