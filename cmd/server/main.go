// ABOUTME: Main entry point for the standalone QuizBot MCP server with stdio transport
// ABOUTME: Loads configuration, opens the index and serves all quiz tools
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/app"
	"github.com/harper/quizbot/internal/config"
	"github.com/harper/quizbot/internal/logging"
	"github.com/harper/quizbot/internal/mcp"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quizbot-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		logger.Warn("OPENAI_API_KEY and LLM_BASE_URL not set; embedding and generation tools will fail")
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return fmt.Errorf("initializing quizbot: %w", err)
	}
	defer func() { _ = a.Close() }()

	server := mcpserver.NewMCPServer("QuizBot", version)
	mcp.RegisterTools(server, a.Pipeline, a.Topics, a.Logger.Named("mcp"))

	a.Logger.Info("QuizBot MCP server starting on stdio",
		zap.String("store", cfg.Store.Backend),
		zap.Int("chunks", a.Index.Count()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		return err
	}
}
