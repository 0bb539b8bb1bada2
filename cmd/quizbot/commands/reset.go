// ABOUTME: CLI command to clear the whole index
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var resetYes bool

// NewResetCmd creates reset command
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove all documents from the index",
		Long: `Remove every document and chunk from the index.

Needed after switching embedding models, since vectors of different
dimensions cannot share an index.

Examples:
  quizbot reset --yes`,
		Args: cobra.NoArgs,
		RunE: runReset,
	}

	cmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Confirm the reset")

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("reset deletes the whole index; rerun with --yes to confirm")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	count := a.Index.Count()
	if err := a.Pipeline.Reset(cmd.Context()); err != nil {
		return userError("reset", err)
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"chunks_removed": count})
	}
	status(cmd.OutOrStdout(), "✓ Index cleared (%d chunks removed)\n", count)
	return nil
}
