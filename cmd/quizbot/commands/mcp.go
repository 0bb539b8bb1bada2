// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents ingest material and generate quizzes via stdio
package commands

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs QuizBot as an MCP (Model Context Protocol) server on stdio so LLM
agents can ingest course material, generate quizzes, answer questions and
search the index.

Logs go to stderr; stdout carries the protocol.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an MCP client)
  quizbot mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "quizbot": {
  #       "command": "quizbot",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	server := mcpserver.NewMCPServer("QuizBot", versionInfo.Version)
	mcp.RegisterTools(server, a.Pipeline, a.Topics, a.Logger.Named("mcp"))

	ctx := cmd.Context()
	a.Logger.Info("MCP server starting on stdio", zap.Int("chunks", a.Index.Count()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
