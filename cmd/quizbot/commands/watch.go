// ABOUTME: CLI command to ingest material as it appears in a directory
// ABOUTME: Indexes existing files first, then new and changed ones until interrupted
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/quizbot/internal/loader"
)

var watchSettle = loader.DefaultSettle

// NewWatchCmd creates watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest material as it is added to a directory",
		Long: `Ingest every text file in a directory, then keep watching it and
index files as they are created or changed. Stop with Ctrl-C.

A changed file has new content and therefore a new document ID; the
previous version stays indexed until deleted.

Examples:
  quizbot watch ~/courses/netsec`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().StringSliceVar(&ingestExtensions, "ext", nil, "File extensions to ingest (comma-separated)")
	cmd.Flags().StringSliceVar(&ingestSkipDirs, "skip", nil, "Directory names to skip (comma-separated)")
	cmd.Flags().DurationVar(&watchSettle, "settle", loader.DefaultSettle, "Quiet period before a changed file is ingested")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	l := loader.New(ingestExtensions, ingestSkipDirs)

	ingestFile := func(path string) {
		doc, err := l.Load(path)
		if err != nil {
			a.Logger.Warn("cannot read file", zap.String("path", path), zap.Error(err))
			return
		}
		res, err := a.Pipeline.Ingest(ctx, doc)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", userError("ingest "+path, err))
			return
		}
		if !res.AlreadyIndexed {
			status(out, "✓ Indexed %s: %d chunks (%s)\n", path, res.ChunkCount, res.DocumentID)
		}
	}

	files, err := l.Collect([]string{dir})
	if err != nil {
		return err
	}
	for _, f := range files {
		ingestFile(f)
	}

	status(out, "Watching %s for new material (Ctrl-C to stop)...\n", dir)
	w := loader.NewWatcher(l, watchSettle, a.Logger.Named("watch"))
	return w.Watch(ctx, dir, ingestFile)
}
