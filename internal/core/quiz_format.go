// ABOUTME: Response grammar for generated quizzes: prompt instructions and parser
// ABOUTME: Malformed question blocks are dropped and counted, never returned as errors
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/harper/quizbot/internal/models"
)

var (
	questionHeaderRe = regexp.MustCompile(`(?i)^[\s#*]*question\s*#?\s*(\d+)\s*[:.)]?[\s*#]*(.*)$`)
	fieldRe          = regexp.MustCompile(`(?i)^[\s*]*(type|prompt|answer|sources?)[\s*]*:[\s*]*(.*)$`)
	optionRe         = regexp.MustCompile(`^\s*(?:\(([A-Ha-h])\)|([A-Ha-h])[).])\s+(.+)$`)
	answerLetterRe   = regexp.MustCompile(`^\(?([A-Ha-h])\)?[.)]?$`)
	labeledAnswerRe  = regexp.MustCompile(`^(?:\(([A-Ha-h])\)|([A-Ha-h])[).:])\s*(.+)$`)
	numberRe         = regexp.MustCompile(`\d+`)
)

// ParseResult holds the valid questions of a response and how many blocks were rejected
type ParseResult struct {
	Questions []models.QuizQuestion
	Dropped   int
	Problems  []string
}

// rawBlock collects the fields of one QUESTION block before validation
type rawBlock struct {
	number   int
	typ      string
	prompt   []string
	options  []string
	answer   []string
	sources  string
	field    string
	badLines int
}

// ParseQuizResponse parses a completion into validated questions of the requested type.
// passageChunkIDs maps passage number n to passageChunkIDs[n-1] for SOURCES.
func ParseQuizResponse(response string, requested models.QuestionType, passageChunkIDs []string) ParseResult {
	var result ParseResult
	for _, block := range splitBlocks(response) {
		q, err := block.toQuestion(requested, passageChunkIDs)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			result.Dropped++
			result.Problems = append(result.Problems, fmt.Sprintf("question %d: %v", block.number, err))
			continue
		}
		result.Questions = append(result.Questions, q)
	}
	return result
}

func splitBlocks(response string) []*rawBlock {
	var blocks []*rawBlock
	var cur *rawBlock

	for _, line := range strings.Split(models.NormalizeText(response), "\n") {
		if m := questionHeaderRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			cur = &rawBlock{number: n}
			if rest := strings.TrimSpace(m[2]); rest != "" {
				cur.prompt = append(cur.prompt, rest)
				cur.field = "prompt"
			}
			blocks = append(blocks, cur)
			continue
		}
		if cur == nil || strings.TrimSpace(line) == "" {
			continue
		}

		if m := fieldRe.FindStringSubmatch(line); m != nil {
			value := strings.Trim(m[2], " \t*")
			switch strings.ToLower(m[1]) {
			case "type":
				cur.typ = value
				cur.field = ""
			case "prompt":
				cur.prompt = nil
				if value != "" {
					cur.prompt = append(cur.prompt, value)
				}
				cur.field = "prompt"
			case "answer":
				if value != "" {
					cur.answer = append(cur.answer, value)
				}
				cur.field = "answer"
			default:
				cur.sources = value
				cur.field = ""
			}
			continue
		}

		if m := optionRe.FindStringSubmatch(line); m != nil && cur.field != "answer" {
			letter := strings.ToUpper(m[1] + m[2])
			if int(letter[0]-'A') != len(cur.options) {
				cur.badLines++
			}
			cur.options = append(cur.options, strings.TrimSpace(m[3]))
			cur.field = "options"
			continue
		}

		// Continuation lines extend the prompt or a free-text answer
		switch cur.field {
		case "prompt":
			cur.prompt = append(cur.prompt, strings.TrimSpace(line))
		case "answer":
			cur.answer = append(cur.answer, strings.TrimSpace(line))
		}
	}
	return blocks
}

func (b *rawBlock) toQuestion(requested models.QuestionType, passageChunkIDs []string) (models.QuizQuestion, error) {
	q := models.QuizQuestion{
		QuestionID:     "q_" + uuid.New().String(),
		Type:           requested,
		Prompt:         strings.TrimSpace(strings.Join(b.prompt, " ")),
		CorrectIndex:   -1,
		SourceChunkIDs: resolveSources(b.sources, passageChunkIDs),
	}

	if b.typ != "" {
		declared, err := models.ParseQuestionType(strings.Trim(b.typ, "*` "))
		if err != nil {
			return q, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		if declared != requested {
			return q, fmt.Errorf("%w: got %s, requested %s", models.ErrValidation, declared, requested)
		}
	}
	if b.badLines > 0 {
		return q, fmt.Errorf("%w: option letters out of sequence", models.ErrValidation)
	}

	answer := strings.TrimSpace(strings.Join(b.answer, " "))
	if answer == "" {
		return q, fmt.Errorf("%w: missing answer", models.ErrValidation)
	}

	switch requested {
	case models.MultipleChoice:
		q.Options = b.options
		q.CorrectIndex = choiceIndex(answer, b.options)
	case models.TrueFalse:
		if len(b.options) == 0 {
			q.Options = append([]string(nil), models.TrueFalseOptions...)
		} else {
			q.Options = canonicalTrueFalse(b.options)
		}
		q.CorrectIndex = trueFalseIndex(answer)
	case models.ShortAnswer:
		q.Options = b.options
		q.CorrectText = answer
	}
	return q, nil
}

// choiceIndex reads "B", "(B)", "B) text" or the full option text.
// A labeled answer counts only when its text matches the labeled option.
func choiceIndex(answer string, options []string) int {
	for i, opt := range options {
		if sameOption(opt, answer) {
			return i
		}
	}
	if m := answerLetterRe.FindStringSubmatch(answer); m != nil {
		return int(strings.ToUpper(m[1])[0] - 'A')
	}
	if m := labeledAnswerRe.FindStringSubmatch(answer); m != nil {
		i := int(strings.ToUpper(m[1] + m[2])[0] - 'A')
		if i < len(options) && sameOption(options[i], m[3]) {
			return i
		}
	}
	return -1
}

// sameOption compares option texts ignoring case and trailing punctuation
func sameOption(a, b string) bool {
	return strings.EqualFold(trimOption(a), trimOption(b))
}

func trimOption(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), " .!*")
}

func trueFalseIndex(answer string) int {
	word := strings.ToLower(strings.Trim(answer, " .!*`\"'()"))
	if i := strings.IndexAny(word, " )."); i > 0 {
		word = word[:i]
	}
	switch word {
	case "true", "a", "t":
		return 0
	case "false", "b", "f":
		return 1
	}
	return -1
}

// canonicalTrueFalse returns the canonical pair when options spell True, False in order
func canonicalTrueFalse(options []string) []string {
	if len(options) == 2 &&
		sameOption(options[0], "true") &&
		sameOption(options[1], "false") {
		return append([]string(nil), models.TrueFalseOptions...)
	}
	return options
}

// resolveSources maps passage numbers to chunk IDs; no valid reference means every passage
func resolveSources(sources string, passageChunkIDs []string) []string {
	var ids []string
	seen := make(map[int]bool)
	for _, m := range numberRe.FindAllString(sources, -1) {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > len(passageChunkIDs) || seen[n] {
			continue
		}
		seen[n] = true
		ids = append(ids, passageChunkIDs[n-1])
	}
	if len(ids) == 0 {
		return append([]string(nil), passageChunkIDs...)
	}
	return ids
}

// quizInstructions describes the response grammar for count questions of type qType
func quizInstructions(qType models.QuestionType, count int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write exactly %d %s question(s). Use exactly this format for every question:\n\n", count, strings.ReplaceAll(string(qType), "_", " ")))

	switch qType {
	case models.MultipleChoice:
		sb.WriteString(`QUESTION 1
TYPE: multiple_choice
PROMPT: <the question>
A) <option>
B) <option>
C) <option>
D) <option>
ANSWER: <letter of the single correct option>
SOURCES: <numbers of the passages that support the answer, e.g. 1, 3>
`)
		sb.WriteString("\nGive between 3 and 6 distinct options. Exactly one option is correct.\n")
	case models.TrueFalse:
		sb.WriteString(`QUESTION 1
TYPE: true_false
PROMPT: <a statement that is either true or false>
A) True
B) False
ANSWER: <True or False>
SOURCES: <numbers of the passages that support the answer, e.g. 2>
`)
	case models.ShortAnswer:
		sb.WriteString(`QUESTION 1
TYPE: short_answer
PROMPT: <the question>
ANSWER: <a short model answer, one or two sentences>
SOURCES: <numbers of the passages that support the answer, e.g. 1>
`)
	}

	sb.WriteString("\nNumber the questions QUESTION 1, QUESTION 2 and so on. Do not add any other text.\n")
	return sb.String()
}
