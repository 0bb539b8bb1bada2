// ABOUTME: Pipeline orchestrates ingest (chunk, embed, index) and generate (retrieve, generate, validate)
// ABOUTME: Failed ingests roll back so a document is either fully indexed or absent
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/logging"
	"github.com/harper/quizbot/internal/models"
	"github.com/harper/quizbot/internal/storage"
)

// Stage names a step of an ingest or generate operation
type Stage string

const (
	StageIdle       Stage = "idle"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StageValidating Stage = "validating"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// MaxQuestionsPerRequest bounds GenerateRequest.Count
const MaxQuestionsPerRequest = 20

// StageError reports the stage at which an operation failed
type StageError struct {
	Operation string
	Stage     Stage
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed during %s: %v", e.Operation, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageEvent is delivered to a StageObserver on every transition
type StageEvent struct {
	Operation string
	Key       string // document ID or query
	Stage     Stage
	Err       error
}

// StageObserver receives stage transitions; it must not block
type StageObserver func(StageEvent)

// PipelineConfig holds orchestration settings
type PipelineConfig struct {
	GenerationRetryLimit int
}

// PipelineDeps are the collaborators a Pipeline orchestrates
type PipelineDeps struct {
	Chunker   *Chunker
	Embedder  TextEmbedder
	Index     *storage.VectorIndex
	Retriever *Retriever
	Generator *QuestionGenerator
	Logger    *zap.Logger
	Observer  StageObserver
}

// IngestResult describes a completed ingest
type IngestResult struct {
	DocumentID     string        `json:"document_id"`
	SourceName     string        `json:"source_name"`
	ChunkCount     int           `json:"chunk_count"`
	AlreadyIndexed bool          `json:"already_indexed"`
	Duration       time.Duration `json:"duration"`
}

// GenerateRequest asks for Count questions of Type about Topic
type GenerateRequest struct {
	Topic           string
	Type            models.QuestionType
	Count           int
	DocumentID      string // optional, restricts retrieval to one document
	DedupByDocument bool
}

// GenerateResult carries the questions and any degraded-success warnings
type GenerateResult struct {
	Questions     []models.QuizQuestion `json:"questions"`
	ContextChunks []models.ScoredChunk  `json:"context_chunks"`
	Dropped       int                   `json:"dropped"`
	Passes        int                   `json:"passes"`
	Warnings      []error               `json:"-"`
}

// Partial reports whether fewer questions than requested were produced
func (r *GenerateResult) Partial() bool {
	for _, w := range r.Warnings {
		if errors.Is(w, models.ErrPartialGeneration) {
			return true
		}
	}
	return false
}

// AskResult is an answer to an open question with the passages it used
type AskResult struct {
	Answer        string               `json:"answer"`
	ContextChunks []models.ScoredChunk `json:"context_chunks"`
}

// Pipeline is safe for concurrent use
type Pipeline struct {
	chunker   *Chunker
	embedder  TextEmbedder
	index     *storage.VectorIndex
	retriever *Retriever
	generator *QuestionGenerator
	config    PipelineConfig
	logger    *zap.Logger
	observer  StageObserver

	docLocks *keyedMutex
	// resetMu lets Reset exclude every document-scoped mutation at once
	resetMu sync.RWMutex
}

// NewPipeline wires the orchestrator
func NewPipeline(deps PipelineDeps, config PipelineConfig) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		index:     deps.Index,
		retriever: deps.Retriever,
		generator: deps.Generator,
		config:    config,
		logger:    logger,
		observer:  deps.Observer,
		docLocks:  newKeyedMutex(),
	}
}

// Index returns the vector index the pipeline writes to
func (p *Pipeline) Index() *storage.VectorIndex {
	return p.index
}

// operation tracks the stage of one call and reports transitions
type operation struct {
	p    *Pipeline
	ctx  context.Context
	name string
	key  string
	cur  Stage
}

func (p *Pipeline) begin(ctx context.Context, name, key string, fields ...zap.Field) *operation {
	fields = append(fields, zap.String("operation", name))
	ctx = logging.ToContext(ctx, p.logger.With(fields...))
	return &operation{p: p, ctx: ctx, name: name, key: key, cur: StageIdle}
}

func (op *operation) enter(stage Stage) {
	op.cur = stage
	logging.FromContext(op.ctx).Debug("stage", zap.String("stage", string(stage)))
	op.notify(stage, nil)
}

func (op *operation) fail(err error) error {
	stage := op.cur
	logging.FromContext(op.ctx).Warn("operation failed",
		zap.String("stage", string(stage)),
		zap.Error(err))
	op.notify(StageFailed, err)
	return &StageError{Operation: op.name, Stage: stage, Err: err}
}

func (op *operation) done(fields ...zap.Field) {
	logging.FromContext(op.ctx).Info(op.name+" complete", fields...)
	op.notify(StageDone, nil)
}

func (op *operation) notify(stage Stage, err error) {
	if op.p.observer != nil {
		op.p.observer(StageEvent{Operation: op.name, Key: op.key, Stage: stage, Err: err})
	}
}

// Ingest chunks, embeds and indexes doc. Ingesting an already indexed
// document is a no-op that reports AlreadyIndexed.
func (p *Pipeline) Ingest(ctx context.Context, doc models.Document) (*IngestResult, error) {
	start := time.Now()
	doc = normalizeDocument(doc)

	p.resetMu.RLock()
	defer p.resetMu.RUnlock()
	unlock := p.docLocks.Lock(doc.DocumentID)
	defer unlock()

	op := p.begin(ctx, "ingest", doc.DocumentID,
		zap.String("document_id", doc.DocumentID),
		zap.String("source", doc.SourceName))

	if n := p.index.CountDocument(doc.DocumentID); n > 0 {
		op.done(zap.Bool("already_indexed", true))
		return &IngestResult{
			DocumentID:     doc.DocumentID,
			SourceName:     doc.SourceName,
			ChunkCount:     n,
			AlreadyIndexed: true,
			Duration:       time.Since(start),
		}, nil
	}

	op.enter(StageChunking)
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return nil, op.fail(err)
	}

	op.enter(StageEmbedding)
	if err := ctx.Err(); err != nil {
		return nil, op.fail(err)
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, op.fail(err)
	}

	op.enter(StageIndexing)
	if err := ctx.Err(); err != nil {
		return nil, op.fail(err)
	}
	entries := make([]models.IndexEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = models.IndexEntry{
			Chunk:      ch,
			Vector:     vectors[i].Values,
			SourceName: doc.SourceName,
		}
	}
	if err := p.index.Upsert(entries); err != nil {
		if _, rbErr := p.index.Delete(doc.DocumentID); rbErr != nil {
			logging.FromContext(op.ctx).Error("rollback failed", zap.Error(rbErr))
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return nil, op.fail(err)
	}

	op.done(zap.Int("chunks", len(chunks)))
	return &IngestResult{
		DocumentID: doc.DocumentID,
		SourceName: doc.SourceName,
		ChunkCount: len(chunks),
		Duration:   time.Since(start),
	}, nil
}

// Generate retrieves context for req.Topic and produces up to req.Count
// unique questions. A shortfall is reported as a warning, not an error,
// unless no valid question was produced at all.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, errors.New("topic is required")
	}
	if req.Type == "" {
		req.Type = models.MultipleChoice
	}
	if _, err := models.ParseQuestionType(string(req.Type)); err != nil {
		return nil, err
	}
	if req.Count < 1 || req.Count > MaxQuestionsPerRequest {
		return nil, fmt.Errorf("question count must be 1-%d, got %d", MaxQuestionsPerRequest, req.Count)
	}

	op := p.begin(ctx, "generate", req.Topic,
		zap.String("topic", req.Topic),
		zap.String("type", string(req.Type)),
		zap.Int("count", req.Count))

	op.enter(StageRetrieving)
	chunks, err := p.retriever.Retrieve(ctx, RetrieveRequest{
		Query:           req.Topic,
		DocumentID:      req.DocumentID,
		DedupByDocument: req.DedupByDocument,
	})
	if err != nil {
		return nil, op.fail(err)
	}

	result := &GenerateResult{}
	seen := make(map[string]bool)
	used := make(map[string]bool)
	var asked []string

	for attempt := 0; attempt <= p.config.GenerationRetryLimit; attempt++ {
		need := req.Count - len(result.Questions)
		if need <= 0 {
			break
		}

		op.enter(StageGenerating)
		pass, err := p.generator.GenerateExcluding(ctx, chunks, req.Type, need, asked)
		if err != nil {
			// Questions accepted by earlier passes survive a failed regeneration
			if len(result.Questions) == 0 || ctx.Err() != nil {
				return nil, op.fail(err)
			}
			logging.FromContext(op.ctx).Warn("regeneration pass failed",
				zap.Int("pass", attempt+1),
				zap.Error(err))
			result.Warnings = append(result.Warnings, fmt.Errorf("regeneration pass %d: %w", attempt+1, err))
			break
		}
		result.Passes++
		for _, id := range pass.ContextChunkIDs {
			used[id] = true
		}

		op.enter(StageValidating)
		result.Dropped += pass.Dropped
		for _, q := range pass.Questions {
			key := promptKey(q.Prompt)
			if seen[key] || len(result.Questions) >= req.Count {
				result.Dropped++
				continue
			}
			seen[key] = true
			asked = append(asked, q.Prompt)
			result.Questions = append(result.Questions, q)
		}
	}

	// Only passages that made it into a prompt are reported as context
	for _, ch := range chunks {
		if used[ch.Chunk.ChunkID] {
			result.ContextChunks = append(result.ContextChunks, ch)
		}
	}

	if len(result.Questions) == 0 {
		return nil, op.fail(fmt.Errorf("%w: no valid questions after %d pass(es)", models.ErrPartialGeneration, result.Passes))
	}
	if len(result.Questions) < req.Count {
		warning := fmt.Errorf("%w: %d of %d questions", models.ErrPartialGeneration, len(result.Questions), req.Count)
		result.Warnings = append(result.Warnings, warning)
		logging.FromContext(op.ctx).Warn("partial generation",
			zap.Int("valid", len(result.Questions)),
			zap.Int("dropped", result.Dropped))
	}

	op.done(zap.Int("questions", len(result.Questions)), zap.Int("passes", result.Passes))
	return result, nil
}

// Ask answers an open question from the indexed material
func (p *Pipeline) Ask(ctx context.Context, question, documentID string) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("question is required")
	}

	op := p.begin(ctx, "ask", question)

	op.enter(StageRetrieving)
	chunks, err := p.retriever.Retrieve(ctx, RetrieveRequest{Query: question, DocumentID: documentID})
	if err != nil {
		return nil, op.fail(err)
	}

	op.enter(StageGenerating)
	answer, err := p.generator.Answer(ctx, chunks, question)
	if err != nil {
		return nil, op.fail(err)
	}

	op.done()
	return &AskResult{Answer: answer, ContextChunks: chunks}, nil
}

// Search returns up to limit relevant chunks for query without generating anything
func (p *Pipeline) Search(ctx context.Context, query string, limit int, documentID string) ([]models.ScoredChunk, error) {
	if limit < 1 {
		limit = 5
	}
	return p.retriever.Retrieve(ctx, RetrieveRequest{
		Query:            query,
		TopK:             limit,
		MaxContextChunks: limit,
		DocumentID:       documentID,
	})
}

// Delete removes a document from the index and returns how many chunks were removed
func (p *Pipeline) Delete(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.resetMu.RLock()
	defer p.resetMu.RUnlock()
	unlock := p.docLocks.Lock(documentID)
	defer unlock()

	removed, err := p.index.Delete(documentID)
	if err != nil {
		return 0, err
	}
	p.logger.Info("document deleted",
		zap.String("document_id", documentID),
		zap.Int("chunks", removed))
	return removed, nil
}

// Reset clears the whole index, waiting for in-flight ingests and deletes
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.resetMu.Lock()
	defer p.resetMu.Unlock()

	if err := p.index.Reset(); err != nil {
		return err
	}
	p.logger.Info("index reset")
	return nil
}

// Documents lists indexed documents in ingestion order
func (p *Pipeline) Documents() []models.DocumentInfo {
	return p.index.Documents()
}

// normalizeDocument ensures normalized text and a content-derived ID
func normalizeDocument(doc models.Document) models.Document {
	text := models.NormalizeText(doc.RawText)
	if text != doc.RawText || doc.DocumentID == "" {
		doc.RawText = text
		doc.DocumentID = models.DocumentIDFor(text)
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}
	return doc
}

func promptKey(prompt string) string {
	return strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
}
