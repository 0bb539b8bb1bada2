// ABOUTME: MCP tool definitions and registration for the QuizBot server
// ABOUTME: Defines JSON schemas for the ingest, quiz, ask, search and document tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/core"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, pipeline *core.Pipeline, topics *core.TopicCatalog, logger *zap.Logger) *Handlers {
	handlers := NewHandlers(pipeline, topics, logger)

	// 1. ingest_document - Add course material to the index
	server.AddTool(mcp.Tool{
		Name:        "ingest_document",
		Description: "Add a plaintext document of course material to the quiz index. Re-ingesting identical text is a no-op.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Full document text",
				},
				"source_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name of the document, e.g. a file name",
				},
			},
			Required: []string{"text"},
		},
	}, handlers.IngestDocument)

	// 2. generate_quiz - Generate questions grounded in the indexed material
	server.AddTool(mcp.Tool{
		Name:        "generate_quiz",
		Description: "Generate quiz questions about a topic using only the indexed course material. Each question cites the chunks it was generated from.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"topic": map[string]interface{}{
					"type":        "string",
					"description": "Topic or query to quiz on (ignored when random is true)",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"multiple_choice", "true_false", "short_answer"},
					"description": "Question type (default: multiple_choice)",
				},
				"count": map[string]interface{}{
					"type":        "number",
					"description": "Number of questions (default: 5)",
					"default":     5,
				},
				"random": map[string]interface{}{
					"type":        "boolean",
					"description": "Pick two random topics from the topic catalog",
				},
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the quiz to one document",
				},
			},
		},
	}, handlers.GenerateQuiz)

	// 3. ask_question - Answer an open question from the material
	server.AddTool(mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question using only the indexed course material, citing passages.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the answer to one document",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.AskQuestion)

	// 4. search_material - Semantic search without generation
	server.AddTool(mcp.Tool{
		Name:        "search_material",
		Description: "Find the passages of the indexed course material most relevant to a query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of passages to return (default: 5)",
					"default":     5,
				},
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the search to one document",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchMaterial)

	// 5. list_documents - List indexed documents
	server.AddTool(mcp.Tool{
		Name:        "list_documents",
		Description: "List indexed documents with their chunk counts.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListDocuments)

	// 6. delete_document - Remove a document and all of its chunks
	server.AddTool(mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and every one of its chunks from the index.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document ID as returned by ingest_document or list_documents",
				},
			},
			Required: []string{"document_id"},
		},
	}, handlers.DeleteDocument)

	// 7. list_topics - Show the topic catalog used for random quizzes
	server.AddTool(mcp.Tool{
		Name:        "list_topics",
		Description: "List the topics in the catalog used for random quizzes.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListTopics)

	return handlers
}
