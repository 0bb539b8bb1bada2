// ABOUTME: CLI command to ingest course material files and directories
// ABOUTME: Walks directories for text files and indexes each one
package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harper/quizbot/internal/core"
	"github.com/harper/quizbot/internal/loader"
	"github.com/harper/quizbot/internal/models"
)

var (
	ingestExtensions []string
	ingestSkipDirs   []string
	ingestName       string
)

// ingestSummary is the JSON shape of an ingest run
type ingestSummary struct {
	Ingested []*core.IngestResult `json:"ingested"`
	Failed   map[string]string    `json:"failed,omitempty"`
}

// NewIngestCmd creates ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Add course material to the index",
		Long: `Add plaintext course material to the index.

Paths may be files or directories. Directories are walked recursively for
text files (.txt .md .py .js .ts .html .css .json .yml .yaml), skipping
node_modules, __pycache__, .git, build, dist, venv, env, .venv and data.
Use "-" to read one document from stdin.

Identical content is only indexed once.

Examples:
  quizbot ingest lectures/
  quizbot ingest notes.md --ext rst,txt
  cat slides.txt | quizbot ingest - --name slides.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringSliceVar(&ingestExtensions, "ext", nil, "File extensions to ingest from directories (comma-separated)")
	cmd.Flags().StringSliceVar(&ingestSkipDirs, "skip", nil, "Directory names to skip (comma-separated)")
	cmd.Flags().StringVar(&ingestName, "name", "stdin", "Source name for a document read from stdin")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	l := loader.New(ingestExtensions, ingestSkipDirs)

	var docs []models.Document
	var paths []string
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			docs = append(docs, models.NewDocument(ingestName, string(data)))
			continue
		}
		paths = append(paths, arg)
	}

	files, err := l.Collect(paths)
	if err != nil {
		return err
	}

	summary := ingestSummary{Failed: map[string]string{}}
	for _, f := range files {
		doc, err := l.Load(f)
		if err != nil {
			summary.Failed[f] = err.Error()
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", f, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 && len(summary.Failed) == 0 {
		return errors.New("no ingestible files found")
	}

	out := cmd.OutOrStdout()
	for _, doc := range docs {
		res, err := a.Pipeline.Ingest(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.Failed[doc.SourceName] = models.UserMessage(err)
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", userError("ingest "+doc.SourceName, err))
			continue
		}
		summary.Ingested = append(summary.Ingested, res)
		if !jsonOutput() {
			if res.AlreadyIndexed {
				status(out, "• %s already indexed (%s)\n", res.SourceName, res.DocumentID)
			} else {
				status(out, "✓ Indexed %s: %d chunks (%s)\n", res.SourceName, res.ChunkCount, res.DocumentID)
			}
		}
	}

	if jsonOutput() {
		if err := writeJSON(out, summary); err != nil {
			return err
		}
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(summary.Failed), len(summary.Failed)+len(summary.Ingested))
	}
	return nil
}
