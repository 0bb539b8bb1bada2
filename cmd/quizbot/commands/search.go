// ABOUTME: CLI command to search the indexed material
// ABOUTME: Shows the passages most relevant to a query without calling the completion model
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	searchLimit    int
	searchDocument string
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the course material",
		Long: `Find the passages most relevant to a query using semantic search.

Examples:
  quizbot search "stream ciphers"
  quizbot search "key exchange" --limit 10
  quizbot search RSA --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVarP(&searchLimit, "limit", "l", 5, "Maximum number of results")
	cmd.Flags().StringVar(&searchDocument, "document", "", "Only search this document ID")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	query := strings.Join(args, " ")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	results, err := a.Pipeline.Search(cmd.Context(), query, searchLimit, searchDocument)
	if err != nil {
		return userError("search", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, results)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tSOURCE\tPASSAGE\n")
	fmt.Fprintf(w, "-----\t------\t-------\n")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\n", r.Score, truncate(r.SourceName, 30), truncate(oneLine(r.Chunk.Text), 70))
	}
	return w.Flush()
}
