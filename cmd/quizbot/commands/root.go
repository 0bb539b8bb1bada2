// ABOUTME: Root command, global flags and shared setup for the QuizBot CLI
// ABOUTME: Every subcommand builds the pipeline through openApp
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/quizbot/internal/app"
	"github.com/harper/quizbot/internal/config"
	"github.com/harper/quizbot/internal/core"
	"github.com/harper/quizbot/internal/logging"
	"github.com/harper/quizbot/internal/models"
)

const banner = `
 ██████╗ ██╗   ██╗██╗███████╗██████╗  ██████╗ ████████╗
██╔═══██╗██║   ██║██║╚══███╔╝██╔══██╗██╔═══██╗╚══██╔══╝
██║   ██║██║   ██║██║  ███╔╝ ██████╔╝██║   ██║   ██║
██║▄▄ ██║██║   ██║██║ ███╔╝  ██╔══██╗██║   ██║   ██║
╚██████╔╝╚██████╔╝██║███████╗██████╔╝╚██████╔╝   ██║
 ╚══▀▀═╝  ╚═════╝ ╚═╝╚══════╝╚═════╝  ╚═════╝    ╚═╝`

// Output formats
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string

	// appOptions are passed to app.New; tests use them to inject fake model services
	appOptions []app.Option
)

// NewRootCmd creates the root command with all subcommands
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizbot",
		Short: "Generate quizzes from your course material",
		Long: banner + `

QuizBot indexes plaintext course material and generates multiple choice,
true/false and short answer questions grounded in it. Every question cites
the passages it was generated from.

Configure the model service with OPENAI_API_KEY, or point LLM_BASE_URL at
an OpenAI-compatible server such as Ollama (http://localhost:11434/v1).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case formatAuto, formatTable, formatJSON:
			default:
				return fmt.Errorf("--format must be auto, table or json, got %q", outputFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", formatAuto, "Output format: auto, table or json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewIngestCmd(),
		NewQuizCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewListCmd(),
		NewDeleteCmd(),
		NewResetCmd(),
		NewTopicsCmd(),
		NewWatchCmd(),
		NewExportCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command; an interrupt cancels the running operation
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig reads configuration and applies the verbosity flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	switch {
	case verbose:
		cfg.LogLevel = "debug"
	case quiet:
		cfg.LogLevel = "error"
	}
	return cfg, nil
}

// openApp loads configuration and wires the pipeline over the persisted index
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger, appOptions...)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("initializing quizbot: %w", err)
	}
	return a, nil
}

// userFacingError prints as an actionable sentence but keeps the cause for errors.Is
type userFacingError struct {
	msg string
	err error
}

func (e *userFacingError) Error() string { return e.msg }
func (e *userFacingError) Unwrap() error { return e.err }

// userError converts pipeline failures into actionable messages.
// Other errors are returned with the operation prefixed.
func userError(op string, err error) error {
	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		msg := fmt.Sprintf("%s failed during %s: %s", op, stageErr.Stage, models.UserMessage(err))
		if verbose {
			msg += fmt.Sprintf(" (%v)", err)
		}
		return &userFacingError{msg: msg, err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// jsonOutput reports whether results should be printed as JSON
func jsonOutput() bool {
	return outputFormat == formatJSON
}
