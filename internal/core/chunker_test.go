// ABOUTME: Tests for the token-window chunker
// ABOUTME: Verifies coverage, overlap, boundary preference and determinism
package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/quizbot/internal/models"
)

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func mustChunker(t *testing.T, size int, overlap float64) *Chunker {
	t.Helper()
	c, err := NewChunker(size, overlap)
	require.NoError(t, err)
	return c
}

func assertCoverage(t *testing.T, doc models.Document, chunks []models.Chunk) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].StartOffset, "first chunk must start at 0")
	assert.Equal(t, len(doc.RawText), chunks[len(chunks)-1].EndOffset, "last chunk must end at len(text)")

	for i, ch := range chunks {
		assert.Equal(t, doc.RawText[ch.StartOffset:ch.EndOffset], ch.Text, "chunk %d text", i)
		assert.Equal(t, doc.DocumentID, ch.DocumentID)
		assert.Equal(t, i, ch.Position)
		assert.Equal(t, models.ChunkIDFor(doc.DocumentID, ch.StartOffset), ch.ChunkID)
		if i > 0 {
			assert.LessOrEqual(t, ch.StartOffset, chunks[i-1].EndOffset, "gap before chunk %d", i)
			assert.Greater(t, ch.StartOffset, chunks[i-1].StartOffset, "chunk %d does not advance", i)
		}
	}
}

func TestNewChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap float64
		wantErr bool
	}{
		{"defaults", DefaultChunkSize, DefaultChunkOverlap, false},
		{"no overlap", 100, 0, false},
		{"zero size", 0, 0.1, true},
		{"negative overlap", 100, -0.1, true},
		{"overlap at half", 100, 0.5, true},
		{"overlap above half", 100, 0.9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	c := mustChunker(t, 10, 0.1)

	for _, text := range []string{"", "   ", "\t\n\n  "} {
		chunks, err := c.Chunk(models.NewDocument("empty.txt", text))
		assert.True(t, errors.Is(err, models.ErrEmptyDocument), "text %q: %v", text, err)
		assert.Nil(t, chunks)
	}
}

func TestChunk_ShortDocumentIsOneChunk(t *testing.T) {
	c := mustChunker(t, 500, 0.15)
	doc := models.NewDocument("short.txt", "  A short note about firewalls.  \n")

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.RawText, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].OverlapWithPrev)
	assertCoverage(t, doc, chunks)
}

func TestChunk_ThreeThousandTokens(t *testing.T) {
	c := mustChunker(t, 500, 0.15)
	doc := models.NewDocument("lecture.txt", words("w", 3000))

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Len(t, chunks, 7)
	assertCoverage(t, doc, chunks)

	for i, ch := range chunks {
		assert.LessOrEqual(t, CountTokens(ch.Text), 500, "chunk %d too long", i)
		if i > 0 {
			assert.Equal(t, 75, ch.OverlapWithPrev, "chunk %d overlap", i)
		}
	}
}

func TestChunk_OverlapRepeatsTrailingTokens(t *testing.T) {
	c := mustChunker(t, 10, 0.2)
	doc := models.NewDocument("w.txt", words("w", 25))

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assertCoverage(t, doc, chunks)

	assert.Equal(t, []int{0, 2, 2}, []int{chunks[0].OverlapWithPrev, chunks[1].OverlapWithPrev, chunks[2].OverlapWithPrev})
	assert.True(t, strings.HasPrefix(chunks[1].Text, "w8 w9 w10"), "got %q", chunks[1].Text)
	assert.True(t, strings.HasPrefix(chunks[2].Text, "w16 w17"), "got %q", chunks[2].Text)
	assert.True(t, strings.HasSuffix(chunks[2].Text, "w24"))
}

func TestChunk_PrefersParagraphBreak(t *testing.T) {
	c := mustChunker(t, 10, 0)
	text := words("a", 7) + ".\n\n" + words("b", 10)
	doc := models.NewDocument("p.txt", text)

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assertCoverage(t, doc, chunks)

	assert.Equal(t, words("a", 7)+".\n\n", chunks[0].Text)
	assert.Equal(t, words("b", 10), chunks[1].Text)
}

func TestChunk_PrefersSentenceEnd(t *testing.T) {
	c := mustChunker(t, 10, 0)
	doc := models.NewDocument("s.txt", "w1 w2 w3 w4 w5 w6 end. w8 w9 w10 w11 w12")

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "w1 w2 w3 w4 w5 w6 end. ", chunks[0].Text)
	assertCoverage(t, doc, chunks)
}

func TestChunk_SentenceEndWithClosingQuote(t *testing.T) {
	assert.True(t, endsSentence(`done."`))
	assert.True(t, endsSentence("really?)"))
	assert.True(t, endsSentence("yes!"))
	assert.False(t, endsSentence("e.g"))
	assert.False(t, endsSentence(`"`))
}

func TestChunk_BoundarySearchKeepsHalfWindow(t *testing.T) {
	c := mustChunker(t, 10, 0)
	// The only sentence end is too early to use; fall back to a hard cut
	doc := models.NewDocument("h.txt", "One two three. four five six seven eight nine ten eleven twelve")

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, CountTokens(chunks[0].Text))
	assertCoverage(t, doc, chunks)
}

func TestChunk_NeverSplitsWords(t *testing.T) {
	c := mustChunker(t, 7, 0.3)
	text := "Le chiffrement symétrique utilise une clé partagée. Les protocoles réseau — TLS, SSH — en dépendent.\n\nÉtape suivante: l’échange de clés Diffie–Hellman protège la session."
	doc := models.NewDocument("fr.txt", text)

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	assertCoverage(t, doc, chunks)

	all := strings.Fields(text)
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			assert.Contains(t, all, w, "chunk contains a split word")
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := mustChunker(t, 50, 0.1)
	text := strings.Repeat("Packets are routed hop by hop. Each router consults its table.\n\n", 40)

	first, err := c.Chunk(models.NewDocument("net.txt", text))
	require.NoError(t, err)
	second, err := c.Chunk(models.NewDocument("net.txt", text))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunk_CRLFNormalizedBeforeChunking(t *testing.T) {
	c := mustChunker(t, 5, 0)
	unix := models.NewDocument("a.txt", "one two\n\nthree four five six\nseven")
	windows := models.NewDocument("a.txt", "one two\r\n\r\nthree four five six\r\nseven")

	a, err := c.Chunk(unix)
	require.NoError(t, err)
	b, err := c.Chunk(windows)
	require.NoError(t, err)

	assert.Equal(t, unix.DocumentID, windows.DocumentID)
	assert.Equal(t, a, b)
}
