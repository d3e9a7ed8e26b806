// Package config provides application configuration management using koanf
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `koanf:"server"`

	// Database configuration
	Database DatabaseConfig `koanf:"database"`

	// External services
	Services ServicesConfig `koanf:"services"`

	// Security settings
	Security SecurityConfig `koanf:"security"`

	// Application settings
	App AppConfig `koanf:"app"`

	// Request limits
	Limits LimitsConfig `koanf:"limits"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// DatabaseConfig holds vector store configuration
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // "sqlite" or "memory"
	Path   string `koanf:"path"`
}

// ServicesConfig holds external service configuration
type ServicesConfig struct {
	Ollama     OllamaConfig     `koanf:"ollama"`
	OpenRouter OpenRouterConfig `koanf:"openrouter"`
}

// OllamaConfig holds the embedding backend configuration
type OllamaConfig struct {
	BaseURL        string `koanf:"base_url"`
	EmbeddingModel string `koanf:"embedding_model"`
	Timeout        int    `koanf:"timeout"` // seconds
}

// OpenRouterConfig holds the generation backend configuration
type OpenRouterConfig struct {
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	Timeout     int     `koanf:"timeout"` // seconds
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	// APIToken guards the API when set; empty disables authentication.
	APIToken string `koanf:"api_token"`
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"
}

// LimitsConfig bounds caller-supplied input
type LimitsConfig struct {
	MaxDocumentChars int `koanf:"max_document_chars"`
	MaxResults       int `koanf:"max_results"`
	DefaultResults   int `koanf:"default_results"`
}

// Load loads configuration from multiple sources with precedence:
// 1. config.yaml (if exists)
// 2. config.json (if exists)
// 3. Environment variables (highest precedence)
func Load() (*Config, error) {
	k := koanf.New(".")

	// Set defaults
	setDefaults(k)

	// Load from config files (optional)
	loadConfigFiles(k)

	// Load from environment variables (highest precedence)
	if err := k.Load(env.Provider(".", env.Opt{}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// Unmarshal into config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		// Server defaults
		"server.host":          "localhost",
		"server.port":          8080,
		"server.read_timeout":  30,
		"server.write_timeout": 30,

		// Database defaults
		"database.driver": "sqlite",
		"database.path":   "vector_store.db",

		// Services defaults
		"services.ollama.base_url":        "http://localhost:11434",
		"services.ollama.embedding_model": "nomic-embed-text",
		"services.ollama.timeout":         60,
		"services.openrouter.base_url":    "https://openrouter.ai/api/v1",
		"services.openrouter.model":       "openai/gpt-3.5-turbo",
		"services.openrouter.timeout":     60,
		"services.openrouter.max_tokens":  512,
		"services.openrouter.temperature": 0.2,

		// App defaults
		"app.environment": "development",
		"app.log_level":   "info",
		"app.log_format":  "text",

		// Limits defaults
		"limits.max_document_chars": 5000,
		"limits.max_results":        10,
		"limits.default_results":    3,
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files
func loadConfigFiles(k *koanf.Koanf) {
	// Try to load YAML config
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load config.yaml: %v", err)
		}
	}

	// Try to load JSON config
	if _, err := os.Stat("config.json"); err == nil {
		if err := k.Load(file.Provider("config.json"), json.Parser()); err != nil {
			log.Printf("Warning: failed to load config.json: %v", err)
		}
	}
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	switch cfg.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		return fmt.Errorf("database path is required for the sqlite driver")
	}

	if cfg.Services.Ollama.EmbeddingModel == "" {
		return fmt.Errorf("embedding model is required")
	}
	if cfg.Services.OpenRouter.Model == "" {
		return fmt.Errorf("generation model is required")
	}
	if cfg.Services.OpenRouter.Temperature < 0 || cfg.Services.OpenRouter.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", cfg.Services.OpenRouter.Temperature)
	}
	if cfg.Services.OpenRouter.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1")
	}

	if cfg.Limits.MaxDocumentChars < 1 {
		return fmt.Errorf("max_document_chars must be at least 1")
	}
	if cfg.Limits.MaxResults < 1 {
		return fmt.Errorf("max_results must be at least 1")
	}
	if cfg.Limits.DefaultResults < 1 || cfg.Limits.DefaultResults > cfg.Limits.MaxResults {
		return fmt.Errorf("default_results must be between 1 and max_results")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
