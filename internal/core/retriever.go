// ABOUTME: Retriever selects the context chunks most relevant to a topic
// ABOUTME: Embeds the query, searches the index, then thresholds, deduplicates and diversifies
package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/models"
	"github.com/harper/quizbot/internal/storage"
)

// TextEmbedder produces vectors for text; Embedder is the production implementation
type TextEmbedder interface {
	Embed(ctx context.Context, text string) (models.EmbeddingVector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error)
}

// RetrieverConfig holds retrieval defaults
type RetrieverConfig struct {
	TopK                int
	MaxContextChunks    int
	DiversityCap        int // per document, 0 = unlimited
	SimilarityThreshold float64
	DedupOverlap        float64 // fraction of the shorter chunk
}

// DefaultRetrieverConfig returns the default retrieval settings
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:                7,
		MaxContextChunks:    5,
		DiversityCap:        3,
		SimilarityThreshold: 0.2,
		DedupOverlap:        0.5,
	}
}

// RetrieveRequest describes one retrieval; zero values fall back to the config
type RetrieveRequest struct {
	Query            string
	TopK             int
	MaxContextChunks int
	DedupByDocument  bool
	DocumentID       string
}

// Retriever reads the index under its snapshot semantics and never mutates it
type Retriever struct {
	embedder TextEmbedder
	index    *storage.VectorIndex
	config   RetrieverConfig
	logger   *zap.Logger
}

// NewRetriever creates a retriever over index
func NewRetriever(embedder TextEmbedder, index *storage.VectorIndex, config RetrieverConfig, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		config:   config,
		logger:   logger,
	}
}

// Retrieve returns context chunks in descending score order.
// An empty index or no result above the threshold yields models.ErrNoRelevantContext.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]models.ScoredChunk, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = r.config.TopK
	}
	maxChunks := req.MaxContextChunks
	if maxChunks <= 0 {
		maxChunks = r.config.MaxContextChunks
	}

	var filter *storage.SearchFilter
	if req.DocumentID != "" {
		filter = &storage.SearchFilter{DocumentID: req.DocumentID}
		if r.index.CountDocument(req.DocumentID) == 0 {
			return nil, fmt.Errorf("%w: document %s is not indexed", models.ErrNoRelevantContext, req.DocumentID)
		}
	}
	if r.index.Count() == 0 {
		return nil, fmt.Errorf("%w: index is empty", models.ErrNoRelevantContext)
	}

	query, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.index.Search(query.Values, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	capPerDoc := r.config.DiversityCap
	if req.DedupByDocument {
		capPerDoc = 1
	}

	selected := r.selectChunks(results, capPerDoc, maxChunks)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no passage scored above %.2f", models.ErrNoRelevantContext, r.config.SimilarityThreshold)
	}

	r.logger.Debug("retrieved context",
		zap.Int("candidates", len(results)),
		zap.Int("selected", len(selected)))
	return selected, nil
}

// selectChunks applies threshold, overlap dedup, per-document cap and the final limit
func (r *Retriever) selectChunks(results models.RetrievalResult, capPerDoc, maxChunks int) []models.ScoredChunk {
	var selected []models.ScoredChunk
	perDoc := make(map[string]int)

	for _, res := range results {
		if len(selected) >= maxChunks {
			break
		}
		if res.Score < r.config.SimilarityThreshold {
			// Results are sorted, nothing further can pass
			break
		}

		ch := res.Entry.Chunk
		if capPerDoc > 0 && perDoc[ch.DocumentID] >= capPerDoc {
			continue
		}
		if r.overlapsSelected(ch, selected) {
			continue
		}

		selected = append(selected, models.ScoredChunk{
			Chunk:      ch,
			SourceName: res.Entry.SourceName,
			Score:      res.Score,
		})
		perDoc[ch.DocumentID]++
	}
	return selected
}

func (r *Retriever) overlapsSelected(ch models.Chunk, selected []models.ScoredChunk) bool {
	for _, s := range selected {
		if s.Chunk.DocumentID != ch.DocumentID {
			continue
		}
		if OverlapRatio(s.Chunk, ch) > r.config.DedupOverlap {
			return true
		}
	}
	return false
}

// OverlapRatio returns the byte overlap of two chunks as a fraction of the shorter one
func OverlapRatio(a, b models.Chunk) float64 {
	lo := max(a.StartOffset, b.StartOffset)
	hi := min(a.EndOffset, b.EndOffset)
	shorter := min(a.Len(), b.Len())
	if hi <= lo || shorter <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(shorter)
}
