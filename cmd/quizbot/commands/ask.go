// ABOUTME: CLI command to ask an open question about the course material
// ABOUTME: Prints the answer followed by the passages it was based on
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askDocument string

// NewAskCmd creates ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the course material",
		Long: `Answer a question using only the indexed course material.

The answer cites the numbered passages listed after it.

Examples:
  quizbot ask "How does HMAC prevent length extension attacks?"
  quizbot ask "What is Rijndael?" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askDocument, "document", "", "Only use material from this document ID")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.Pipeline.Ask(cmd.Context(), question, askDocument)
	if err != nil {
		return userError("ask", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, map[string]interface{}{
			"question": question,
			"answer":   res.Answer,
			"sources":  sourceRefs(res.ContextChunks),
		})
	}

	fmt.Fprintf(out, "%s\n\n", res.Answer)
	if !quiet {
		printSources(out, res.ContextChunks)
	}
	return nil
}
