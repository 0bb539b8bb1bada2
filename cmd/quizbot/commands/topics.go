// ABOUTME: CLI command to show the topic catalog used for random quizzes
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/quizbot/internal/core"
)

// NewTopicsCmd creates topics command
func NewTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List the topic catalog",
		Long: `List the topics "quizbot quiz --random" draws from.

The built-in catalog covers a network security course. Replace it with a
TOML file set in QUIZBOT_TOPICS_FILE:

  name = "Networking 101"
  topics = ["Routing", "Switching", "DNS"]`,
		Args: cobra.NoArgs,
		RunE: runTopics,
	}

	return cmd
}

func runTopics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := core.LoadTopicCatalog(cfg.TopicsFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, catalog)
	}

	status(out, "%s (%d topics)\n\n", catalog.Name, len(catalog.Topics))
	for _, t := range catalog.Topics {
		fmt.Fprintf(out, "  • %s\n", t)
	}
	return nil
}
