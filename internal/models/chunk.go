// ABOUTME: Chunk represents a bounded, contiguous span of a document used for retrieval
// ABOUTME: Chunk IDs are derived from (document_id, start_offset) and never from wall-clock time
package models

import (
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes the name-based UUIDs used for chunk IDs
var chunkNamespace = uuid.MustParse("6f1c7a52-4d0e-4a8b-9a55-2b8f3c1d9e70")

// Chunk is a span [StartOffset, EndOffset) of its document's normalized text.
// OverlapWithPrev counts the tokens shared with the preceding chunk.
type Chunk struct {
	ChunkID         string `json:"chunk_id"`
	DocumentID      string `json:"document_id"`
	Text            string `json:"text"`
	StartOffset     int    `json:"start_offset"`
	EndOffset       int    `json:"end_offset"`
	OverlapWithPrev int    `json:"overlap_with_prev"`
	Position        int    `json:"position"`
}

// ScoredChunk is a chunk paired with its similarity to a query
type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	SourceName string  `json:"source_name"`
	Score      float64 `json:"score"`
}

// ChunkIDFor returns the deterministic chunk ID for a document offset
func ChunkIDFor(documentID string, startOffset int) string {
	name := documentID + ":" + strconv.Itoa(startOffset)
	return "chunk_" + uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// Len returns the chunk's length in bytes
func (c Chunk) Len() int {
	return c.EndOffset - c.StartOffset
}
