// ABOUTME: MCP tool handler implementations for the QuizBot server
// ABOUTME: Tool failures are reported as tool errors carrying a user-actionable message
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/core"
	"github.com/harper/quizbot/internal/models"
)

const defaultQuestionCount = 5

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	pipeline *core.Pipeline
	topics   *core.TopicCatalog
	logger   *zap.Logger
}

// NewHandlers creates handlers over a wired pipeline
func NewHandlers(pipeline *core.Pipeline, topics *core.TopicCatalog, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topics == nil {
		topics = core.DefaultTopicCatalog()
	}
	return &Handlers{pipeline: pipeline, topics: topics, logger: logger}
}

// IngestDocument handles the ingest_document tool
func (h *Handlers) IngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}
	source := request.GetString("source_name", "untitled")

	res, err := h.pipeline.Ingest(ctx, models.NewDocument(source, text))
	if err != nil {
		return h.failure("ingest", err), nil
	}

	return jsonResult(map[string]interface{}{
		"document_id":     res.DocumentID,
		"source_name":     res.SourceName,
		"chunk_count":     res.ChunkCount,
		"already_indexed": res.AlreadyIndexed,
	})
}

// GenerateQuiz handles the generate_quiz tool
func (h *Handlers) GenerateQuiz(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	qType, err := models.ParseQuestionType(request.GetString("type", string(models.MultipleChoice)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	topic := strings.TrimSpace(request.GetString("topic", ""))
	var picked []string
	if request.GetBool("random", false) {
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		topic, picked = h.topics.RandomQuery(rng)
	}
	if topic == "" {
		return mcp.NewToolResultError("topic argument is required unless random is true"), nil
	}

	res, err := h.pipeline.Generate(ctx, core.GenerateRequest{
		Topic:      topic,
		Type:       qType,
		Count:      request.GetInt("count", defaultQuestionCount),
		DocumentID: request.GetString("document_id", ""),
	})
	if err != nil {
		return h.failure("generate", err), nil
	}

	warnings := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, w.Error())
	}

	response := map[string]interface{}{
		"topic":     topic,
		"questions": res.Questions,
		"partial":   res.Partial(),
		"warnings":  warnings,
		"sources":   sourceSummaries(res.ContextChunks),
	}
	if picked != nil {
		response["random_topics"] = picked
	}
	return jsonResult(response)
}

// AskQuestion handles the ask_question tool
func (h *Handlers) AskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	res, err := h.pipeline.Ask(ctx, question, request.GetString("document_id", ""))
	if err != nil {
		return h.failure("ask", err), nil
	}

	return jsonResult(map[string]interface{}{
		"answer":  res.Answer,
		"sources": sourceSummaries(res.ContextChunks),
	})
}

// SearchMaterial handles the search_material tool
func (h *Handlers) SearchMaterial(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	maxResults := request.GetInt("max_results", 5)

	chunks, err := h.pipeline.Search(ctx, query, maxResults, request.GetString("document_id", ""))
	if err != nil {
		return h.failure("search", err), nil
	}

	results := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, map[string]interface{}{
			"chunk_id":    c.Chunk.ChunkID,
			"document_id": c.Chunk.DocumentID,
			"source_name": c.SourceName,
			"score":       c.Score,
			"text":        c.Chunk.Text,
		})
	}
	return jsonResult(map[string]interface{}{"results": results})
}

// ListDocuments handles the list_documents tool
func (h *Handlers) ListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{"documents": h.pipeline.Documents()})
}

// DeleteDocument handles the delete_document tool
func (h *Handlers) DeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id argument is required and must be a string"), nil
	}

	removed, err := h.pipeline.Delete(ctx, documentID)
	if err != nil {
		return h.failure("delete", err), nil
	}
	return jsonResult(map[string]interface{}{
		"document_id":    documentID,
		"chunks_removed": removed,
	})
}

// ListTopics handles the list_topics tool
func (h *Handlers) ListTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"name":   h.topics.Name,
		"topics": h.topics.Topics,
	})
}

func (h *Handlers) failure(tool string, err error) *mcp.CallToolResult {
	h.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	// Request validation errors are already readable
	msg := err.Error()
	if models.Classified(err) {
		msg = models.UserMessage(err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", tool, msg))
}

func sourceSummaries(chunks []models.ScoredChunk) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, map[string]interface{}{
			"chunk_id":    c.Chunk.ChunkID,
			"source_name": c.SourceName,
			"score":       c.Score,
		})
	}
	return out
}

func jsonResult(response interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
