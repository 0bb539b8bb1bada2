// ABOUTME: CLI command to generate a quiz from the indexed material
// ABOUTME: Supports a topic argument or two random topics from the catalog
package commands

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/quizbot/internal/core"
	"github.com/harper/quizbot/internal/models"
)

var (
	quizType        string
	quizCount       int
	quizRandom      bool
	quizDocument    string
	quizHideAnswers bool
	quizDiverse     bool
)

// quizOutput is the JSON shape of a generated quiz
type quizOutput struct {
	Topic        string                `json:"topic"`
	RandomTopics []string              `json:"random_topics,omitempty"`
	Questions    []models.QuizQuestion `json:"questions"`
	Partial      bool                  `json:"partial"`
	Warnings     []string              `json:"warnings,omitempty"`
	Sources      []sourceRef           `json:"sources"`
}

type sourceRef struct {
	ChunkID    string  `json:"chunk_id"`
	SourceName string  `json:"source_name"`
	Score      float64 `json:"score"`
}

// NewQuizCmd creates quiz command
func NewQuizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz [topic]",
		Short: "Generate quiz questions about a topic",
		Long: `Generate quiz questions grounded in the indexed course material.

Question types: multiple_choice (mc), true_false (tf), short_answer (sa).
With --random, two topics are drawn from the topic catalog instead.
If the model returns fewer valid questions than requested, QuizBot retries
and then reports a partial quiz.

Examples:
  quizbot quiz "Diffie-Hellman Key Exchange"
  quizbot quiz RSA --type tf --count 10
  quizbot quiz --random --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runQuiz,
	}

	cmd.Flags().StringVarP(&quizType, "type", "t", string(models.MultipleChoice), "Question type: multiple_choice, true_false or short_answer")
	cmd.Flags().IntVarP(&quizCount, "count", "n", 5, "Number of questions")
	cmd.Flags().BoolVar(&quizRandom, "random", false, "Quiz on two random topics from the catalog")
	cmd.Flags().StringVar(&quizDocument, "document", "", "Only use material from this document ID")
	cmd.Flags().BoolVar(&quizHideAnswers, "hide-answers", false, "Do not print the answers")
	cmd.Flags().BoolVar(&quizDiverse, "diverse", false, "Use at most one passage per document")

	return cmd
}

func runQuiz(cmd *cobra.Command, args []string) error {
	qType, err := models.ParseQuestionType(quizType)
	if err != nil {
		return err
	}
	if err := validatePositiveInt(quizCount, "count"); err != nil {
		return err
	}

	var topic string
	if len(args) > 0 {
		topic = strings.TrimSpace(args[0])
	}
	if topic == "" && !quizRandom {
		return errors.New("give a topic or use --random")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var picked []string
	if quizRandom {
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		topic, picked = a.Topics.RandomQuery(rng)
	}

	out := cmd.OutOrStdout()
	if !jsonOutput() {
		status(out, "Generating %d %s question(s) about: %s\n\n", quizCount, strings.ReplaceAll(string(qType), "_", " "), topic)
	}

	res, err := a.Pipeline.Generate(cmd.Context(), core.GenerateRequest{
		Topic:           topic,
		Type:            qType,
		Count:           quizCount,
		DocumentID:      quizDocument,
		DedupByDocument: quizDiverse,
	})
	if err != nil {
		return userError("quiz", err)
	}

	if jsonOutput() {
		output := quizOutput{
			Topic:        topic,
			RandomTopics: picked,
			Questions:    res.Questions,
			Partial:      res.Partial(),
			Sources:      sourceRefs(res.ContextChunks),
		}
		for _, w := range res.Warnings {
			output.Warnings = append(output.Warnings, w.Error())
		}
		return writeJSON(out, output)
	}

	printQuiz(out, res, !quizHideAnswers)
	if res.Partial() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: only %d of %d questions passed validation\n", len(res.Questions), quizCount)
	}
	return nil
}

func printQuiz(w io.Writer, res *core.GenerateResult, showAnswers bool) {
	sourceIndex := make(map[string]int, len(res.ContextChunks))
	for i, c := range res.ContextChunks {
		sourceIndex[c.Chunk.ChunkID] = i + 1
	}

	for i, q := range res.Questions {
		fmt.Fprintf(w, "%d. %s\n", i+1, q.Prompt)
		for j, opt := range q.Options {
			fmt.Fprintf(w, "   %c) %s\n", 'A'+j, opt)
		}
		if showAnswers {
			answer := q.CorrectAnswer()
			if q.CorrectIndex >= 0 {
				answer = fmt.Sprintf("%c) %s", 'A'+q.CorrectIndex, answer)
			}
			fmt.Fprintf(w, "   Answer: %s\n", answer)
		}
		var refs []string
		for _, id := range q.SourceChunkIDs {
			if n, ok := sourceIndex[id]; ok {
				refs = append(refs, fmt.Sprintf("[%d]", n))
			}
		}
		if len(refs) > 0 {
			fmt.Fprintf(w, "   Sources: %s\n", strings.Join(refs, " "))
		}
		fmt.Fprintln(w)
	}

	printSources(w, res.ContextChunks)
}

func printSources(w io.Writer, chunks []models.ScoredChunk) {
	if len(chunks) == 0 {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for i, c := range chunks {
		fmt.Fprintf(w, "  [%d] %s (score %.2f) %s\n", i+1, c.SourceName, c.Score, truncate(oneLine(c.Chunk.Text), 60))
	}
}

func sourceRefs(chunks []models.ScoredChunk) []sourceRef {
	refs := make([]sourceRef, 0, len(chunks))
	for _, c := range chunks {
		refs = append(refs, sourceRef{ChunkID: c.Chunk.ChunkID, SourceName: c.SourceName, Score: c.Score})
	}
	return refs
}
