// ABOUTME: CLI command to list indexed documents
// ABOUTME: Shows source names, chunk counts and document IDs
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCmd creates list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Long: `List the documents in the index in the order they were added.

Document IDs are derived from the document text, so the same material
always has the same ID.

Examples:
  quizbot list
  quizbot list --format json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	docs := a.Pipeline.Documents()
	out := cmd.OutOrStdout()

	if jsonOutput() {
		return writeJSON(out, docs)
	}
	if len(docs) == 0 {
		status(out, "No documents indexed. Add material with: quizbot ingest <path>\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SOURCE\tCHUNKS\tDOCUMENT ID\n")
	fmt.Fprintf(w, "------\t------\t-----------\n")
	total := 0
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%d\t%s\n", truncate(d.SourceName, 40), d.ChunkCount, d.DocumentID)
		total += d.ChunkCount
	}
	if err := w.Flush(); err != nil {
		return err
	}
	status(out, "\n%d document(s), %d chunk(s)\n", len(docs), total)
	return nil
}
