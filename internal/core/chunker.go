// ABOUTME: Chunker splits a document into overlapping, token-bounded chunks for embedding
// ABOUTME: Prefers paragraph breaks, then sentence ends, and never splits a word
package core

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harper/quizbot/internal/models"
)

const (
	// DefaultChunkSize is the target chunk length in tokens
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the fraction of a chunk repeated at the start of the next
	DefaultChunkOverlap = 0.15
)

// Chunker is stateless after construction and safe for concurrent use
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with size in tokens and overlap as a fraction in [0, 0.5)
func NewChunker(size int, overlapFraction float64) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlapFraction < 0 || overlapFraction >= 0.5 {
		return nil, fmt.Errorf("chunk overlap must be in [0, 0.5), got %f", overlapFraction)
	}
	return &Chunker{
		size:    size,
		overlap: int(math.Round(float64(size) * overlapFraction)),
	}, nil
}

// Size returns the target chunk size in tokens
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of tokens shared by consecutive chunks
func (c *Chunker) Overlap() int { return c.overlap }

// span is a token's byte range in the document text
type span struct {
	start, end int
}

// Chunk splits doc into chunks covering the whole text.
// The same document always yields the same chunks and IDs.
func (c *Chunker) Chunk(doc models.Document) ([]models.Chunk, error) {
	text := doc.RawText
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyDocument
	}

	tokens := tokenize(text)
	n := len(tokens)

	var chunks []models.Chunk
	first := 0
	prevOverlap := 0
	for {
		last := n-first <= c.size
		end := n
		if !last {
			end = c.windowEnd(text, tokens, first)
		}

		startOffset := tokens[first].start
		if first == 0 {
			startOffset = 0
		}
		endOffset := len(text)
		if !last {
			endOffset = tokens[end].start
		}

		chunks = append(chunks, models.Chunk{
			ChunkID:         models.ChunkIDFor(doc.DocumentID, startOffset),
			DocumentID:      doc.DocumentID,
			Text:            text[startOffset:endOffset],
			StartOffset:     startOffset,
			EndOffset:       endOffset,
			OverlapWithPrev: prevOverlap,
			Position:        len(chunks),
		})

		if last {
			break
		}
		next := end - c.overlap
		prevOverlap = end - next
		first = next
	}

	return chunks, nil
}

// windowEnd picks the exclusive end token index for a window starting at first.
// The result always lies in (first+overlap, first+size] so the next window advances.
func (c *Chunker) windowEnd(text string, tokens []span, first int) int {
	limit := first + c.size
	minEnd := first + c.size/2
	if minEnd < first+c.overlap+1 {
		minEnd = first + c.overlap + 1
	}

	for e := limit; e >= minEnd; e-- {
		if isParagraphBreak(text[tokens[e-1].end:tokens[e].start]) {
			return e
		}
	}
	for e := limit; e >= minEnd; e-- {
		if endsSentence(text[tokens[e-1].start:tokens[e-1].end]) {
			return e
		}
	}
	return limit
}

// tokenize returns the byte spans of whitespace-delimited words
func tokenize(text string) []span {
	var tokens []span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, span{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, span{start, len(text)})
	}
	return tokens
}

// CountTokens returns the number of whitespace-delimited words in text
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

func isParagraphBreak(gap string) bool {
	return strings.Count(gap, "\n") >= 2
}

// endsSentence reports whether a word closes a sentence, allowing trailing quotes or brackets
func endsSentence(word string) bool {
	word = strings.TrimRightFunc(word, func(r rune) bool {
		return strings.ContainsRune(`"')]}»”’`, r)
	})
	if word == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(word)
	return r == '.' || r == '!' || r == '?'
}
