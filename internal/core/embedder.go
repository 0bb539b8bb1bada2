// ABOUTME: Embedder turns text into vectors through the embedding service
// ABOUTME: Batches requests concurrently, deduplicates, caches and retries transient failures
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/harper/quizbot/internal/models"
	"github.com/harper/quizbot/internal/util"
)

// EmbeddingService is the external embedding model.
// It returns one vector per input text, in input order.
type EmbeddingService interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbedderConfig tunes request batching and retry behavior
type EmbedderConfig struct {
	BatchSize   int
	Concurrency int
	RateLimit   float64 // requests per second, 0 disables limiting
	CacheTTL    time.Duration
	Retry       util.RetryPolicy
}

// DefaultEmbedderConfig returns the default embedder settings
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		BatchSize:   10,
		Concurrency: 4,
		CacheTTL:    10 * time.Minute,
		Retry:       util.RetryPolicy{MaxRetries: 3, BaseDelay: time.Second},
	}
}

// Embedder is safe for concurrent use
type Embedder struct {
	service EmbeddingService
	config  EmbedderConfig
	cache   *cache.Cache
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewEmbedder creates an embedder over service
func NewEmbedder(service EmbeddingService, config EmbedderConfig, logger *zap.Logger) *Embedder {
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Embedder{
		service: service,
		config:  config,
		logger:  logger,
	}
	if config.CacheTTL > 0 {
		e.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}
	if config.RateLimit > 0 {
		burst := int(math.Ceil(config.RateLimit))
		e.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return e
}

// Embed embeds a single text
func (e *Embedder) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return models.EmbeddingVector{}, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts, returning one vector per text in input order.
// Either every text gets a vector or the call fails with no partial result.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Identical texts share one slot and one request
	slots := make([]int, len(texts))
	slotOf := make(map[string]int)
	var keys, unique []string
	for i, text := range texts {
		key := textKey(text)
		j, ok := slotOf[key]
		if !ok {
			j = len(unique)
			slotOf[key] = j
			keys = append(keys, key)
			unique = append(unique, text)
		}
		slots[i] = j
	}

	uniqueValues := make([][]float64, len(unique))
	var missing []int
	for j, key := range keys {
		if v, ok := e.cached(key); ok {
			uniqueValues[j] = v
		} else {
			missing = append(missing, j)
		}
	}

	if len(missing) > 0 {
		request := make([]string, len(missing))
		for k, j := range missing {
			request[k] = unique[j]
		}
		fetched, err := e.fetch(ctx, request)
		if err != nil {
			return nil, err
		}
		for k, j := range missing {
			uniqueValues[j] = fetched[k]
			if e.cache != nil {
				e.cache.Set(keys[j], fetched[k], cache.DefaultExpiration)
			}
		}
	}

	values := make([][]float64, len(texts))
	for i, j := range slots {
		values[i] = uniqueValues[j]
	}

	dim := len(values[0])
	out := make([]models.EmbeddingVector, len(values))
	for i, v := range values {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for text %d", models.ErrEmbeddingUnavailable, i)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: text %d has dimension %d, expected %d", models.ErrDimensionMismatch, i, len(v), dim)
		}
		out[i] = models.NewEmbeddingVector("", v)
	}
	return out, nil
}

// fetch requests vectors for unique texts in concurrent batches
func (e *Embedder) fetch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch := texts[start:end]
		offset := start

		g.Go(func() error {
			vectors, err := e.requestWithRetry(gctx, batch)
			if err != nil {
				return err
			}
			copy(results[offset:], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	e.logger.Debug("embedded texts",
		zap.Int("texts", len(texts)),
		zap.Int("batch_size", e.config.BatchSize))
	return results, nil
}

func (e *Embedder) requestWithRetry(ctx context.Context, batch []string) ([][]float64, error) {
	retryIf := func(err error) bool {
		return ctx.Err() == nil && models.IsRetryable(err)
	}
	opts := append(e.config.Retry.Options(ctx, retryIf),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("embedding request failed, retrying",
				zap.Uint("attempt", n+1),
				zap.Int("texts", len(batch)),
				zap.Error(err))
		}))

	vectors, err := retry.DoWithData(func() ([][]float64, error) {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}
		}
		vectors, err := e.service.CreateEmbeddings(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, &models.ServiceError{
				Kind: models.ServiceUnavailable,
				Err:  fmt.Errorf("expected %d vectors, got %d", len(batch), len(vectors)),
			}
		}
		return vectors, nil
	}, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	return vectors, nil
}

func (e *Embedder) cached(key string) ([]float64, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]float64), true
}

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
