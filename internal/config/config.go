// ABOUTME: Centralized configuration for the quiz generation pipeline
// ABOUTME: Loads from .env and environment variables with validation and defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/harper/quizbot/internal/util"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreCharm  = "charm"
)

// Config holds all configuration for the quiz system
type Config struct {
	LLM       LLMConfig
	Chunking  ChunkingConfig
	Embedding EmbeddingConfig
	Retrieval RetrievalConfig
	Generator GeneratorConfig
	Store     StoreConfig
	Charm     CharmConfig

	TopicsFile string `env:"QUIZBOT_TOPICS_FILE"`
	LogLevel   string `env:"QUIZBOT_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"QUIZBOT_LOG_FORMAT" envDefault:"console"`
}

// LLMConfig configures the OpenAI-compatible model services
type LLMConfig struct {
	APIKey              string        `env:"OPENAI_API_KEY"`
	BaseURL             string        `env:"LLM_BASE_URL"`
	ChatModel           string        `env:"QUIZBOT_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel      string        `env:"QUIZBOT_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int           `env:"QUIZBOT_EMBEDDING_DIMENSIONS" envDefault:"0"`
	Timeout             time.Duration `env:"QUIZBOT_TIMEOUT" envDefault:"30s"`
	MaxRetries          int           `env:"QUIZBOT_MAX_RETRIES" envDefault:"3"`
	RetryDelay          time.Duration `env:"QUIZBOT_RETRY_DELAY" envDefault:"1s"`
}

// ChunkingConfig configures document splitting
type ChunkingConfig struct {
	ChunkSize int     `env:"QUIZBOT_CHUNK_SIZE" envDefault:"500"`
	Overlap   float64 `env:"QUIZBOT_CHUNK_OVERLAP" envDefault:"0.15"`
}

// EmbeddingConfig configures batching and caching of embedding requests
type EmbeddingConfig struct {
	BatchSize   int           `env:"QUIZBOT_EMBEDDING_BATCH_SIZE" envDefault:"10"`
	Concurrency int           `env:"QUIZBOT_EMBEDDING_CONCURRENCY" envDefault:"4"`
	RateLimit   float64       `env:"QUIZBOT_EMBEDDING_RATE_LIMIT" envDefault:"0"`
	CacheTTL    time.Duration `env:"QUIZBOT_EMBEDDING_CACHE_TTL" envDefault:"10m"`
}

// RetrievalConfig configures context selection
type RetrievalConfig struct {
	TopK                int     `env:"QUIZBOT_TOP_K" envDefault:"7"`
	MaxContextChunks    int     `env:"QUIZBOT_MAX_CONTEXT_CHUNKS" envDefault:"5"`
	DiversityCap        int     `env:"QUIZBOT_DIVERSITY_CAP" envDefault:"3"`
	SimilarityThreshold float64 `env:"QUIZBOT_SIMILARITY_THRESHOLD" envDefault:"0.2"`
	DedupOverlap        float64 `env:"QUIZBOT_DEDUP_OVERLAP" envDefault:"0.5"`
}

// GeneratorConfig configures prompt construction and regeneration
type GeneratorConfig struct {
	MaxContextTokens    int `env:"QUIZBOT_MAX_CONTEXT_TOKENS" envDefault:"3000"`
	CompletionMaxTokens int `env:"QUIZBOT_COMPLETION_MAX_TOKENS" envDefault:"1500"`
	RetryLimit          int `env:"QUIZBOT_GENERATION_RETRY_LIMIT" envDefault:"2"`
}

// StoreConfig selects the index persistence backend
type StoreConfig struct {
	Backend string `env:"QUIZBOT_STORE" envDefault:"sqlite"`
	DBPath  string `env:"QUIZBOT_DB_PATH"`
}

// CharmConfig configures the Charm KV backend
type CharmConfig struct {
	Host     string `env:"CHARM_HOST" envDefault:"charm.2389.dev"`
	DBName   string `env:"QUIZBOT_CHARM_DB" envDefault:"quizbot"`
	AutoSync bool   `env:"CHARM_AUTO_SYNC" envDefault:"true"`
}

// Load reads .env (if present) and then the process environment
func Load() (*Config, error) {
	// Missing .env is fine; variables may be set externally
	_ = godotenv.Load()
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom parses configuration from an explicit variable map
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("QUIZBOT_MAX_RETRIES must be 0-10, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("QUIZBOT_EMBEDDING_DIMENSIONS must be >= 0, got %d", c.LLM.EmbeddingDimensions))
	}
	if c.Chunking.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_CHUNK_SIZE must be positive, got %d", c.Chunking.ChunkSize))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= 0.5 {
		errs = append(errs, fmt.Errorf("QUIZBOT_CHUNK_OVERLAP must be in [0, 0.5), got %f", c.Chunking.Overlap))
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_EMBEDDING_BATCH_SIZE must be positive, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_EMBEDDING_CONCURRENCY must be positive, got %d", c.Embedding.Concurrency))
	}
	if c.Embedding.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("QUIZBOT_EMBEDDING_RATE_LIMIT must be >= 0, got %f", c.Embedding.RateLimit))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_TOP_K must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.MaxContextChunks < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_MAX_CONTEXT_CHUNKS must be positive, got %d", c.Retrieval.MaxContextChunks))
	}
	if c.Retrieval.DiversityCap < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_DIVERSITY_CAP must be positive, got %d", c.Retrieval.DiversityCap))
	}
	if c.Retrieval.SimilarityThreshold < -1 || c.Retrieval.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_SIMILARITY_THRESHOLD must be -1..1, got %f", c.Retrieval.SimilarityThreshold))
	}
	if c.Retrieval.DedupOverlap <= 0 || c.Retrieval.DedupOverlap > 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_DEDUP_OVERLAP must be in (0, 1], got %f", c.Retrieval.DedupOverlap))
	}
	if c.Generator.MaxContextTokens < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_MAX_CONTEXT_TOKENS must be positive, got %d", c.Generator.MaxContextTokens))
	}
	if c.Generator.CompletionMaxTokens < 1 {
		errs = append(errs, fmt.Errorf("QUIZBOT_COMPLETION_MAX_TOKENS must be positive, got %d", c.Generator.CompletionMaxTokens))
	}
	if c.Generator.RetryLimit < 0 {
		errs = append(errs, fmt.Errorf("QUIZBOT_GENERATION_RETRY_LIMIT must be >= 0, got %d", c.Generator.RetryLimit))
	}

	switch strings.ToLower(c.Store.Backend) {
	case StoreMemory, StoreSQLite, StoreCharm:
	default:
		errs = append(errs, fmt.Errorf("QUIZBOT_STORE must be memory, sqlite or charm, got %q", c.Store.Backend))
	}

	return errors.Join(errs...)
}

// RetryPolicy returns the transient-failure policy for model service calls
func (c *Config) RetryPolicy() util.RetryPolicy {
	return util.RetryPolicy{MaxRetries: c.LLM.MaxRetries, BaseDelay: c.LLM.RetryDelay}
}
