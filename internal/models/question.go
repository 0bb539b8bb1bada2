// ABOUTME: QuizQuestion is a validated, generated question with provenance
// ABOUTME: Validate enforces the per-type option and answer rules
package models

import (
	"fmt"
	"strings"
)

// QuestionType is the kind of quiz question
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

// TrueFalseOptions are the canonical true/false options
var TrueFalseOptions = []string{"True", "False"}

// Option count bounds for multiple choice questions
const (
	MinChoiceOptions = 3
	MaxChoiceOptions = 6
)

// ParseQuestionType accepts the canonical names plus a few common aliases
func ParseQuestionType(s string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "multiple_choice", "multiple-choice", "mcq", "mc":
		return MultipleChoice, nil
	case "true_false", "true-false", "tf", "truefalse":
		return TrueFalse, nil
	case "short_answer", "short-answer", "short", "sa":
		return ShortAnswer, nil
	}
	return "", fmt.Errorf("unknown question type %q (want multiple_choice, true_false or short_answer)", s)
}

// QuizQuestion is never mutated after creation.
// CorrectIndex is -1 for short answer questions, which use CorrectText.
type QuizQuestion struct {
	QuestionID     string       `json:"question_id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options"`
	CorrectIndex   int          `json:"correct_index"`
	CorrectText    string       `json:"correct_text,omitempty"`
	SourceChunkIDs []string     `json:"source_chunk_ids"`
}

// CorrectAnswer returns the correct option text or the short answer
func (q QuizQuestion) CorrectAnswer() string {
	if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
		return q.Options[q.CorrectIndex]
	}
	return q.CorrectText
}

// Validate checks the invariants for the question's type
func (q QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrValidation)
	}
	if len(q.SourceChunkIDs) == 0 {
		return fmt.Errorf("%w: no source chunks", ErrValidation)
	}

	switch q.Type {
	case MultipleChoice:
		if len(q.Options) < MinChoiceOptions || len(q.Options) > MaxChoiceOptions {
			return fmt.Errorf("%w: multiple choice needs %d-%d options, got %d",
				ErrValidation, MinChoiceOptions, MaxChoiceOptions, len(q.Options))
		}
		seen := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			key := strings.ToLower(strings.TrimSpace(opt))
			if key == "" {
				return fmt.Errorf("%w: empty option", ErrValidation)
			}
			if seen[key] {
				return fmt.Errorf("%w: duplicate option %q", ErrValidation, opt)
			}
			seen[key] = true
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: correct option %d out of range", ErrValidation, q.CorrectIndex)
		}
	case TrueFalse:
		if len(q.Options) != 2 || q.Options[0] != TrueFalseOptions[0] || q.Options[1] != TrueFalseOptions[1] {
			return fmt.Errorf("%w: true/false options must be exactly True, False", ErrValidation)
		}
		if q.CorrectIndex != 0 && q.CorrectIndex != 1 {
			return fmt.Errorf("%w: true/false answer must be True or False", ErrValidation)
		}
	case ShortAnswer:
		if len(q.Options) != 0 {
			return fmt.Errorf("%w: short answer takes no options", ErrValidation)
		}
		if strings.TrimSpace(q.CorrectText) == "" {
			return fmt.Errorf("%w: short answer needs answer text", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrValidation, q.Type)
	}
	return nil
}
