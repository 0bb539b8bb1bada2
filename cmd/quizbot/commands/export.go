// ABOUTME: CLI command to export the index
// ABOUTME: Writes YAML, JSON or Markdown to a file or stdout
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harper/quizbot/internal/storage"
)

var (
	exportOutput  string
	exportAs      string
	exportVectors bool
)

// NewExportCmd creates export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export indexed documents and chunks",
		Long: `Export every indexed document with its chunks.

Formats: yaml (default), json, markdown. Vectors are left out unless
--vectors is given.

Examples:
  quizbot export
  quizbot export --as markdown -o index.md
  quizbot export --as json --vectors -o backup.json`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&exportAs, "as", storage.ExportYAML, "Export format: yaml, json or markdown")
	cmd.Flags().BoolVar(&exportVectors, "vectors", false, "Include embedding vectors")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	data := a.Index.Export(exportVectors)

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		if err := os.MkdirAll(filepath.Dir(exportOutput), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		file, err := os.Create(exportOutput) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	if err := storage.WriteExport(w, data, exportAs); err != nil {
		return err
	}
	if exportOutput != "" {
		status(cmd.ErrOrStderr(), "✓ Exported %d document(s) to %s\n", len(data.Documents), exportOutput)
	}
	return nil
}
