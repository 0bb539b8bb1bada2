// ABOUTME: CLI command to delete documents from the index
package commands

import (
	"github.com/spf13/cobra"
)

// NewDeleteCmd creates delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Remove documents from the index",
		Long: `Remove documents and every one of their chunks from the index.

Find document IDs with "quizbot list".

Examples:
  quizbot delete doc_3f2a9c...`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDelete,
	}

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	removed := make(map[string]int, len(args))
	for _, id := range args {
		n, err := a.Pipeline.Delete(cmd.Context(), id)
		if err != nil {
			return userError("delete "+id, err)
		}
		removed[id] = n
		if !jsonOutput() {
			if n == 0 {
				status(out, "• %s was not indexed\n", id)
			} else {
				status(out, "✓ Deleted %s (%d chunks)\n", id, n)
			}
		}
	}

	if jsonOutput() {
		return writeJSON(out, map[string]interface{}{"chunks_removed": removed})
	}
	return nil
}
