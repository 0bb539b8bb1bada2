// ABOUTME: Document represents a piece of uploaded course material
// ABOUTME: Document IDs are content hashes so identical uploads collapse to one document
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Document is immutable once ingested
type Document struct {
	DocumentID string    `json:"document_id"`
	SourceName string    `json:"source_name"`
	RawText    string    `json:"raw_text"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DocumentInfo summarizes an indexed document
type DocumentInfo struct {
	DocumentID string `json:"document_id"`
	SourceName string `json:"source_name"`
	ChunkCount int    `json:"chunk_count"`
}

// NewDocument normalizes line endings and derives the content-hash ID.
// IngestedAt is informational only and never feeds into any identifier.
func NewDocument(sourceName, rawText string) Document {
	text := NormalizeText(rawText)
	return Document{
		DocumentID: DocumentIDFor(text),
		SourceName: sourceName,
		RawText:    text,
		IngestedAt: time.Now().UTC(),
	}
}

// NormalizeText converts CRLF and lone CR line endings to LF
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// DocumentIDFor returns the stable document ID for already-normalized text
func DocumentIDFor(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "doc_" + hex.EncodeToString(sum[:16])
}
