// ABOUTME: Builds the quiz pipeline from configuration: logger, index backend, model client, components
// ABOUTME: Shared by the CLI and the MCP server so both see the same persisted index
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/charm"
	"github.com/harper/quizbot/internal/config"
	"github.com/harper/quizbot/internal/core"
	"github.com/harper/quizbot/internal/llm"
	"github.com/harper/quizbot/internal/models"
	"github.com/harper/quizbot/internal/storage"
	"github.com/harper/quizbot/internal/storage/sqlite"
)

var (
	_ storage.Backend = (*sqlite.EntryStore)(nil)
	_ storage.Backend = (*charm.Backend)(nil)

	_ core.EmbeddingService  = (*llm.OpenAIClient)(nil)
	_ core.CompletionService = (*llm.OpenAIClient)(nil)
)

// App holds the wired pipeline and everything that must be closed with it
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Index    *storage.VectorIndex
	Pipeline *core.Pipeline
	Topics   *core.TopicCatalog
}

// Option customizes construction, mainly for tests
type Option func(*options)

type options struct {
	backend    storage.Backend
	useBackend bool
	embedding  core.EmbeddingService
	completion core.CompletionService
	observer   core.StageObserver
}

// WithBackend replaces the configured persistence backend (nil for memory only)
func WithBackend(backend storage.Backend) Option {
	return func(o *options) {
		o.backend = backend
		o.useBackend = true
	}
}

// WithServices replaces the OpenAI-compatible model client
func WithServices(embedding core.EmbeddingService, completion core.CompletionService) Option {
	return func(o *options) {
		o.embedding = embedding
		o.completion = completion
	}
}

// WithObserver receives pipeline stage transitions
func WithObserver(observer core.StageObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// New wires the application from cfg. The index is loaded from the backend before returning.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if !o.useBackend {
		var err error
		backend, err = openBackend(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open index store: %w", err)
		}
	}

	index := storage.NewVectorIndex(backend)
	if err := index.Load(); err != nil {
		_ = index.Close()
		return nil, err
	}
	logger.Debug("index loaded",
		zap.String("store", cfg.Store.Backend),
		zap.Int("chunks", index.Count()),
		zap.Int("dimension", index.Dimension()))

	embedding, completion := o.embedding, o.completion
	if embedding == nil || completion == nil {
		client, err := newModelClient(cfg)
		if err != nil {
			_ = index.Close()
			return nil, err
		}
		if embedding == nil {
			embedding = client
		}
		if completion == nil {
			completion = client
		}
	}

	topics, err := core.LoadTopicCatalog(cfg.TopicsFile)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	chunker, err := core.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	retry := cfg.RetryPolicy()
	embedder := core.NewEmbedder(embedding, core.EmbedderConfig{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		RateLimit:   cfg.Embedding.RateLimit,
		CacheTTL:    cfg.Embedding.CacheTTL,
		Retry:       retry,
	}, logger.Named("embedder"))

	retriever := core.NewRetriever(embedder, index, core.RetrieverConfig{
		TopK:                cfg.Retrieval.TopK,
		MaxContextChunks:    cfg.Retrieval.MaxContextChunks,
		DiversityCap:        cfg.Retrieval.DiversityCap,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		DedupOverlap:        cfg.Retrieval.DedupOverlap,
	}, logger.Named("retriever"))

	generator := core.NewQuestionGenerator(completion, core.GeneratorConfig{
		MaxContextTokens:    cfg.Generator.MaxContextTokens,
		CompletionMaxTokens: cfg.Generator.CompletionMaxTokens,
		Retry:               retry,
	}, logger.Named("generator"))

	pipeline := core.NewPipeline(core.PipelineDeps{
		Chunker:   chunker,
		Embedder:  embedder,
		Index:     index,
		Retriever: retriever,
		Generator: generator,
		Logger:    logger.Named("pipeline"),
		Observer:  o.observer,
	}, core.PipelineConfig{GenerationRetryLimit: cfg.Generator.RetryLimit})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Index:    index,
		Pipeline: pipeline,
		Topics:   topics,
	}, nil
}

// Close flushes the logger and releases the index backend
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return a.Index.Close()
}

func openBackend(cfg *config.Config, logger *zap.Logger) (storage.Backend, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case config.StoreMemory:
		return nil, nil
	case config.StoreCharm:
		client, err := charm.NewClient(&charm.Config{
			Host:     cfg.Charm.Host,
			DBName:   cfg.Charm.DBName,
			AutoSync: cfg.Charm.AutoSync,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("using charm store", zap.String("host", cfg.Charm.Host))
		return charm.NewBackend(client), nil
	default:
		path := cfg.Store.DBPath
		if path == "" {
			path = sqlite.DefaultDBPath()
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("using sqlite store", zap.String("path", path))
		return sqlite.NewEntryStore(db), nil
	}
}

// newModelClient builds the OpenAI-compatible client. Without credentials
// the returned service fails every call with a NotConfigured error, so
// commands that never reach a model still work.
func newModelClient(cfg *config.Config) (modelService, error) {
	if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		return unconfigured{}, nil
	}
	clientCfg := llm.DefaultConfig(cfg.LLM.APIKey)
	clientCfg.BaseURL = cfg.LLM.BaseURL
	clientCfg.ChatModel = cfg.LLM.ChatModel
	clientCfg.EmbeddingModel = cfg.LLM.EmbeddingModel
	clientCfg.EmbeddingDimensions = cfg.LLM.EmbeddingDimensions
	clientCfg.Timeout = cfg.LLM.Timeout
	client, err := llm.NewOpenAIClientWithConfig(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}
	return client, nil
}

type modelService interface {
	core.EmbeddingService
	core.CompletionService
}

var errNotConfigured = &models.ServiceError{
	Kind: models.NotConfigured,
	Err:  errors.New("set OPENAI_API_KEY or LLM_BASE_URL"),
}

type unconfigured struct{}

func (unconfigured) CreateEmbeddings(context.Context, []string) ([][]float64, error) {
	return nil, errNotConfigured
}

func (unconfigured) Complete(context.Context, string, int) (string, error) {
	return "", errNotConfigured
}
