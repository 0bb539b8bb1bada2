// ABOUTME: Embedding models for vector storage and semantic search
// ABOUTME: Defines EmbeddingVector, IndexEntry and search result structures
package models

import "fmt"

// EmbeddingVector is a fixed-dimension vector owned by a chunk or an ephemeral query
type EmbeddingVector struct {
	OwnerID   string    `json:"owner_id"`
	Dimension int       `json:"dimension"`
	Values    []float64 `json:"values"`
}

// NewEmbeddingVector wraps raw values, deriving the dimension from their length
func NewEmbeddingVector(ownerID string, values []float64) EmbeddingVector {
	return EmbeddingVector{OwnerID: ownerID, Dimension: len(values), Values: values}
}

// ValidateDimension checks the vector against an expected dimension
func (v EmbeddingVector) ValidateDimension(expected int) error {
	if len(v.Values) == 0 {
		return fmt.Errorf("embedding vector cannot be empty")
	}
	if len(v.Values) != expected {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, expected, len(v.Values))
	}
	return nil
}

// IndexEntry is a chunk stored in the vector index.
// Seq is assigned by the index on first insertion and orders ties in search results.
type IndexEntry struct {
	Chunk      Chunk     `json:"chunk"`
	Vector     []float64 `json:"vector"`
	SourceName string    `json:"source_name"`
	Seq        int64     `json:"seq"`
}

// ChunkID is a shortcut for Chunk.ChunkID
func (e IndexEntry) ChunkID() string {
	return e.Chunk.ChunkID
}

// DocumentID is a shortcut for Chunk.DocumentID
func (e IndexEntry) DocumentID() string {
	return e.Chunk.DocumentID
}

// SearchResult is one nearest-neighbour hit
type SearchResult struct {
	Entry IndexEntry `json:"entry"`
	Score float64    `json:"score"`
}

// RetrievalResult is ordered by descending score with unique chunk IDs
type RetrievalResult []SearchResult
