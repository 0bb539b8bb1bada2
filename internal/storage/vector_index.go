// ABOUTME: VectorIndex stores chunk embeddings and answers exact cosine nearest-neighbour queries
// ABOUTME: Writes go through an optional persistence Backend before becoming visible to searches
package storage

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/harper/quizbot/internal/models"
)

// Backend persists index entries. A nil Backend keeps the index in memory only.
// LoadEntries must return entries with the Seq values they were saved with.
type Backend interface {
	LoadEntries() ([]models.IndexEntry, error)
	SaveEntries(entries []models.IndexEntry) error
	DeleteDocument(documentID string) error
	Reset() error
	Close() error
}

// SearchFilter restricts a search to matching metadata. Empty fields match everything.
type SearchFilter struct {
	DocumentID string
	SourceName string
}

func (f *SearchFilter) matches(e *models.IndexEntry) bool {
	if f == nil {
		return true
	}
	if f.DocumentID != "" && e.Chunk.DocumentID != f.DocumentID {
		return false
	}
	if f.SourceName != "" && e.SourceName != f.SourceName {
		return false
	}
	return true
}

// VectorIndex is an explicitly owned index; create one per store and pass it around.
// All reads observe a consistent snapshot: an Upsert batch becomes visible all at once.
type VectorIndex struct {
	mu        sync.RWMutex
	backend   Backend
	entries   map[string]*models.IndexEntry
	dimension int
	nextSeq   int64
}

// NewVectorIndex creates an empty index over the given backend (nil for memory only)
func NewVectorIndex(backend Backend) *VectorIndex {
	return &VectorIndex{
		backend: backend,
		entries: make(map[string]*models.IndexEntry),
		nextSeq: 1,
	}
}

// Load replaces in-memory state with the backend's persisted entries
func (vi *VectorIndex) Load() error {
	if vi.backend == nil {
		return nil
	}

	loaded, err := vi.backend.LoadEntries()
	if err != nil {
		return fmt.Errorf("loading index entries: %w", err)
	}

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].Seq < loaded[j].Seq })

	entries := make(map[string]*models.IndexEntry, len(loaded))
	dimension := 0
	var maxSeq int64
	for i := range loaded {
		e := loaded[i]
		if dimension == 0 {
			dimension = len(e.Vector)
		} else if len(e.Vector) != dimension {
			return fmt.Errorf("%w: persisted entry %s has %d values, index has %d",
				models.ErrDimensionMismatch, e.ChunkID(), len(e.Vector), dimension)
		}
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
		entries[e.ChunkID()] = &e
	}

	vi.mu.Lock()
	defer vi.mu.Unlock()
	vi.entries = entries
	vi.dimension = dimension
	vi.nextSeq = maxSeq + 1
	return nil
}

// Upsert inserts or replaces entries by chunk ID.
// Either every entry is applied or none is; a dimension mismatch leaves the index unchanged.
func (vi *VectorIndex) Upsert(entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	vi.mu.Lock()
	defer vi.mu.Unlock()

	dimension := vi.dimension
	for _, e := range entries {
		if e.ChunkID() == "" {
			return fmt.Errorf("index entry without chunk id")
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("index entry %s has an empty vector", e.ChunkID())
		}
		if dimension == 0 {
			dimension = len(e.Vector)
		}
		if len(e.Vector) != dimension {
			return fmt.Errorf("%w: entry %s has %d values, index has %d",
				models.ErrDimensionMismatch, e.ChunkID(), len(e.Vector), dimension)
		}
	}

	// Replacements keep their original position in the tie-break order
	nextSeq := vi.nextSeq
	assigned := make(map[string]int64, len(entries))
	prepared := make([]models.IndexEntry, 0, len(entries))
	for _, e := range entries {
		seq, ok := assigned[e.ChunkID()]
		if !ok {
			if existing, found := vi.entries[e.ChunkID()]; found {
				seq = existing.Seq
			} else {
				seq = nextSeq
				nextSeq++
			}
			assigned[e.ChunkID()] = seq
		}
		e.Seq = seq
		e.Vector = append([]float64(nil), e.Vector...)
		prepared = append(prepared, e)
	}

	if vi.backend != nil {
		if err := vi.backend.SaveEntries(prepared); err != nil {
			return fmt.Errorf("persisting index entries: %w", err)
		}
	}

	for i := range prepared {
		e := prepared[i]
		vi.entries[e.ChunkID()] = &e
	}
	vi.dimension = dimension
	vi.nextSeq = nextSeq
	return nil
}

// Search returns up to k entries ranked by cosine similarity to query.
// Equal scores are ordered by insertion, earliest first.
func (vi *VectorIndex) Search(query []float64, k int, filter *SearchFilter) (models.RetrievalResult, error) {
	if k <= 0 {
		return models.RetrievalResult{}, nil
	}

	vi.mu.RLock()
	defer vi.mu.RUnlock()

	if len(vi.entries) == 0 {
		return models.RetrievalResult{}, nil
	}
	if len(query) != vi.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d",
			models.ErrDimensionMismatch, len(query), vi.dimension)
	}

	results := make(models.RetrievalResult, 0, len(vi.entries))
	for _, e := range vi.entries {
		if !filter.matches(e) {
			continue
		}
		results = append(results, models.SearchResult{
			Entry: *e,
			Score: CosineSimilarity(query, e.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.Seq < results[j].Entry.Seq
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes every entry of a document and returns how many were removed.
// Deleting an unknown document is a no-op.
func (vi *VectorIndex) Delete(documentID string) (int, error) {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	// The backend may hold rows the memory view never published (failed ingest)
	if vi.backend != nil {
		if err := vi.backend.DeleteDocument(documentID); err != nil {
			return 0, fmt.Errorf("deleting document %s: %w", documentID, err)
		}
	}

	removed := 0
	for id, e := range vi.entries {
		if e.Chunk.DocumentID == documentID {
			delete(vi.entries, id)
			removed++
		}
	}
	if len(vi.entries) == 0 {
		vi.dimension = 0
	}
	return removed, nil
}

// Reset clears all entries and the established dimension
func (vi *VectorIndex) Reset() error {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	if vi.backend != nil {
		if err := vi.backend.Reset(); err != nil {
			return fmt.Errorf("resetting index: %w", err)
		}
	}
	vi.entries = make(map[string]*models.IndexEntry)
	vi.dimension = 0
	vi.nextSeq = 1
	return nil
}

// Count returns the number of indexed chunks
func (vi *VectorIndex) Count() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return len(vi.entries)
}

// CountDocument returns the number of indexed chunks of one document
func (vi *VectorIndex) CountDocument(documentID string) int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	n := 0
	for _, e := range vi.entries {
		if e.Chunk.DocumentID == documentID {
			n++
		}
	}
	return n
}

// Dimension returns the established vector dimension, 0 when empty
func (vi *VectorIndex) Dimension() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return vi.dimension
}

// ChunkIDs returns a document's chunk IDs in document order
func (vi *VectorIndex) ChunkIDs(documentID string) []string {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	var chunks []models.Chunk
	for _, e := range vi.entries {
		if e.Chunk.DocumentID == documentID {
			chunks = append(chunks, e.Chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartOffset < chunks[j].StartOffset })

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	return ids
}

// Entries returns a copy of every entry in insertion order
func (vi *VectorIndex) Entries() []models.IndexEntry {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	out := make([]models.IndexEntry, 0, len(vi.entries))
	for _, e := range vi.entries {
		c := *e
		c.Vector = append([]float64(nil), e.Vector...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Documents summarizes indexed documents in the order they were first indexed
func (vi *VectorIndex) Documents() []models.DocumentInfo {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	type docAgg struct {
		info     models.DocumentInfo
		firstSeq int64
	}
	byDoc := make(map[string]*docAgg)
	for _, e := range vi.entries {
		agg, ok := byDoc[e.Chunk.DocumentID]
		if !ok {
			agg = &docAgg{
				info:     models.DocumentInfo{DocumentID: e.Chunk.DocumentID, SourceName: e.SourceName},
				firstSeq: e.Seq,
			}
			byDoc[e.Chunk.DocumentID] = agg
		}
		agg.info.ChunkCount++
		if e.Seq < agg.firstSeq {
			agg.firstSeq = e.Seq
		}
	}

	aggs := make([]*docAgg, 0, len(byDoc))
	for _, agg := range byDoc {
		aggs = append(aggs, agg)
	}
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].firstSeq < aggs[j].firstSeq })

	docs := make([]models.DocumentInfo, len(aggs))
	for i, agg := range aggs {
		docs[i] = agg.info
	}
	return docs
}

// Close releases the backend
func (vi *VectorIndex) Close() error {
	if vi.backend != nil {
		return vi.backend.Close()
	}
	return nil
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
