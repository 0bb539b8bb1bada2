// ABOUTME: QuestionGenerator prompts the completion service with retrieved passages
// ABOUTME: Parses the reply into validated quiz questions and answers open questions
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/models"
	"github.com/harper/quizbot/internal/util"
)

// CompletionService is the external text-completion model
type CompletionService interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GeneratorConfig tunes prompt size and completion retries
type GeneratorConfig struct {
	MaxContextTokens    int
	CompletionMaxTokens int
	Retry               util.RetryPolicy
}

// DefaultGeneratorConfig returns the default generator settings
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxContextTokens:    DefaultMaxContextTokens,
		CompletionMaxTokens: 1500,
		Retry:               util.RetryPolicy{MaxRetries: 3, BaseDelay: time.Second},
	}
}

// GenerationPass is the outcome of one completion call
type GenerationPass struct {
	Questions       []models.QuizQuestion
	Dropped         int
	ContextChunkIDs []string
}

// QuestionGenerator is safe for concurrent use
type QuestionGenerator struct {
	completion CompletionService
	builder    *ContextBuilder
	config     GeneratorConfig
	logger     *zap.Logger
}

// NewQuestionGenerator creates a generator over completion
func NewQuestionGenerator(completion CompletionService, config GeneratorConfig, logger *zap.Logger) *QuestionGenerator {
	if config.CompletionMaxTokens <= 0 {
		config.CompletionMaxTokens = DefaultGeneratorConfig().CompletionMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionGenerator{
		completion: completion,
		builder:    NewContextBuilder(config.MaxContextTokens),
		config:     config,
		logger:     logger,
	}
}

// Generate asks for count questions of qType grounded in contextChunks
func (g *QuestionGenerator) Generate(ctx context.Context, contextChunks []models.ScoredChunk, qType models.QuestionType, count int) (*GenerationPass, error) {
	return g.GenerateExcluding(ctx, contextChunks, qType, count, nil)
}

// GenerateExcluding is Generate with a list of question prompts the model must not repeat
func (g *QuestionGenerator) GenerateExcluding(ctx context.Context, contextChunks []models.ScoredChunk, qType models.QuestionType, count int, exclude []string) (*GenerationPass, error) {
	if len(contextChunks) == 0 {
		return nil, models.ErrNoRelevantContext
	}
	if count < 1 {
		return nil, fmt.Errorf("question count must be positive, got %d", count)
	}

	built := g.builder.Build(contextChunks)
	prompt := quizPrompt(built, qType, count, exclude)

	response, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed := ParseQuizResponse(response, qType, built.ChunkIDs())
	for _, problem := range parsed.Problems {
		g.logger.Debug("dropped generated question", zap.String("reason", problem))
	}
	if parsed.Dropped > 0 {
		g.logger.Info("generated questions failed validation",
			zap.Int("dropped", parsed.Dropped),
			zap.Int("valid", len(parsed.Questions)))
	}

	return &GenerationPass{
		Questions:       parsed.Questions,
		Dropped:         parsed.Dropped,
		ContextChunkIDs: built.ChunkIDs(),
	}, nil
}

// Answer responds to an open question using only the given passages
func (g *QuestionGenerator) Answer(ctx context.Context, contextChunks []models.ScoredChunk, question string) (string, error) {
	if len(contextChunks) == 0 {
		return "", models.ErrNoRelevantContext
	}

	built := g.builder.Build(contextChunks)
	response, err := g.complete(ctx, answerPrompt(built, question))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// complete calls the service with retries. A reply that arrives after ctx
// is cancelled is discarded.
func (g *QuestionGenerator) complete(ctx context.Context, prompt string) (string, error) {
	retryIf := func(err error) bool {
		return ctx.Err() == nil && models.IsRetryable(err)
	}
	opts := append(g.config.Retry.Options(ctx, retryIf),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("completion request failed, retrying",
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}))

	response, err := retry.DoWithData(func() (string, error) {
		return g.completion.Complete(ctx, prompt, g.config.CompletionMaxTokens)
	}, opts...)

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrCompletionFailure, err)
	}
	return response, nil
}

func quizPrompt(built BuiltContext, qType models.QuestionType, count int, exclude []string) string {
	var sb strings.Builder
	sb.WriteString("You are a teaching assistant writing quiz questions for students.\n")
	sb.WriteString("Use ONLY the course material in the numbered passages below. Every answer must be supported by at least one passage.\n\n")
	sb.WriteString("PASSAGES:\n")
	sb.WriteString(built.Text)
	sb.WriteString("\n\n")
	sb.WriteString(quizInstructions(qType, count))

	if len(exclude) > 0 {
		sb.WriteString("\nDo not repeat these questions, which were already asked:\n")
		for _, p := range exclude {
			sb.WriteString("- ")
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func answerPrompt(built BuiltContext, question string) string {
	var sb strings.Builder
	sb.WriteString("Answer the question based only on the following context:\n\n")
	sb.WriteString(built.Text)
	sb.WriteString("\n\n---\n\n")
	sb.WriteString("Answer the question based on the above context: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\nIf the context does not contain the answer, say that the course material does not cover it. Cite passages as [n].\n")
	return sb.String()
}
