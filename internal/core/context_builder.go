// ABOUTME: ContextBuilder assembles retrieved chunks into numbered prompt passages
// ABOUTME: Enforces a token budget by dropping the weakest passages first
package core

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/harper/quizbot/internal/models"
)

const (
	// DefaultMaxContextTokens bounds the passages section of a prompt
	DefaultMaxContextTokens = 3000
	// charsPerToken approximates tokens as 4 characters
	charsPerToken = 4

	passageSeparator = "\n\n---\n\n"
	truncatedMarker  = " ... [truncated]"
)

// BuiltContext is the rendered passages section.
// Passage n (1-based) in Text corresponds to Chunks[n-1].
type BuiltContext struct {
	Text      string
	Chunks    []models.ScoredChunk
	Truncated bool
}

// ChunkIDs returns the IDs of the included chunks in passage order
func (bc BuiltContext) ChunkIDs() []string {
	ids := make([]string, len(bc.Chunks))
	for i, c := range bc.Chunks {
		ids[i] = c.Chunk.ChunkID
	}
	return ids
}

// ContextBuilder renders passages within a token budget
type ContextBuilder struct {
	maxTokens int
}

// NewContextBuilder creates a builder with the given token budget
func NewContextBuilder(maxTokens int) *ContextBuilder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return &ContextBuilder{maxTokens: maxTokens}
}

// EstimateTokens approximates the token count of text (4 chars ≈ 1 token)
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Build renders chunks in their given order, dropping the lowest scoring
// passages until the budget fits. The best passage is truncated, never dropped.
func (cb *ContextBuilder) Build(chunks []models.ScoredChunk) BuiltContext {
	if len(chunks) == 0 {
		return BuiltContext{}
	}
	maxChars := cb.maxTokens * charsPerToken

	kept := append([]models.ScoredChunk(nil), chunks...)
	for len(kept) > 1 && len(render(kept)) > maxChars {
		kept = dropWeakest(kept)
	}

	text := render(kept)
	if len(text) <= maxChars {
		return BuiltContext{Text: text, Chunks: kept, Truncated: len(kept) < len(chunks)}
	}

	// A single passage is still over budget: cut its text at a word boundary
	only := kept[0]
	header := passageHeader(1, only.SourceName)
	room := maxChars - len(header) - len(truncatedMarker)
	body := strings.TrimSpace(only.Chunk.Text)
	if room < 0 {
		room = 0
	}
	if room < len(body) {
		cut := strings.LastIndexAny(body[:room], " \n\t")
		if cut <= 0 {
			cut = room
			for cut > 0 && !utf8.RuneStart(body[cut]) {
				cut--
			}
		}
		body = strings.TrimSpace(body[:cut]) + truncatedMarker
	}

	return BuiltContext{Text: header + body, Chunks: kept, Truncated: true}
}

// dropWeakest removes the lowest scoring chunk, the latest one on ties
func dropWeakest(chunks []models.ScoredChunk) []models.ScoredChunk {
	idx := make([]int, len(chunks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if chunks[idx[a]].Score != chunks[idx[b]].Score {
			return chunks[idx[a]].Score < chunks[idx[b]].Score
		}
		return idx[a] > idx[b]
	})
	victim := idx[0]
	if victim == 0 {
		// The top passage stays; drop the next weakest instead
		victim = idx[1]
	}
	return append(chunks[:victim:victim], chunks[victim+1:]...)
}

func render(chunks []models.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = passageHeader(i+1, c.SourceName) + strings.TrimSpace(c.Chunk.Text)
	}
	return strings.Join(parts, passageSeparator)
}

func passageHeader(n int, source string) string {
	if source == "" {
		source = "unknown source"
	}
	return fmt.Sprintf("[%d] (%s)\n", n, source)
}
