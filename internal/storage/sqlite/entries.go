// ABOUTME: Index entry persistence for SQLite, used as a VectorIndex backend
// ABOUTME: Saves each batch in one transaction so a failed write leaves no partial rows
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/harper/quizbot/internal/models"
)

// EntryStore persists index entries
type EntryStore struct {
	db *DB
}

// NewEntryStore creates a new EntryStore
func NewEntryStore(db *DB) *EntryStore {
	return &EntryStore{db: db}
}

// LoadEntries returns every persisted entry ordered by insertion sequence
func (s *EntryStore) LoadEntries() ([]models.IndexEntry, error) {
	rows, err := s.db.Query(`
		SELECT chunk_id, seq, document_id, source_name, position, start_offset, end_offset,
		       overlap_with_prev, text, dimension, vector
		FROM index_entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.IndexEntry
	for rows.Next() {
		var (
			e          models.IndexEntry
			sourceName sql.NullString
			dimension  int
			blob       []byte
		)
		if err := rows.Scan(&e.Chunk.ChunkID, &e.Seq, &e.Chunk.DocumentID, &sourceName,
			&e.Chunk.Position, &e.Chunk.StartOffset, &e.Chunk.EndOffset, &e.Chunk.OverlapWithPrev,
			&e.Chunk.Text, &dimension, &blob); err != nil {
			return nil, err
		}
		if sourceName.Valid {
			e.SourceName = sourceName.String
		}
		e.Vector = blobToVector(blob)
		if len(e.Vector) != dimension {
			return nil, fmt.Errorf("corrupt vector for %s: stored dimension %d, decoded %d",
				e.Chunk.ChunkID, dimension, len(e.Vector))
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SaveEntries inserts or replaces entries in a single transaction
func (s *EntryStore) SaveEntries(entries []models.IndexEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO index_entries (chunk_id, seq, document_id, source_name, position, start_offset,
			end_offset, overlap_with_prev, text, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			seq = excluded.seq,
			document_id = excluded.document_id,
			source_name = excluded.source_name,
			position = excluded.position,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			overlap_with_prev = excluded.overlap_with_prev,
			text = excluded.text,
			dimension = excluded.dimension,
			vector = excluded.vector
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, e := range entries {
		if _, err := stmt.Exec(e.Chunk.ChunkID, e.Seq, e.Chunk.DocumentID, nullString(e.SourceName),
			e.Chunk.Position, e.Chunk.StartOffset, e.Chunk.EndOffset, e.Chunk.OverlapWithPrev,
			e.Chunk.Text, len(e.Vector), vectorToBlob(e.Vector), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save entry %s: %w", e.Chunk.ChunkID, err)
		}
	}

	return tx.Commit()
}

// DeleteDocument removes all entries of a document
func (s *EntryStore) DeleteDocument(documentID string) error {
	_, err := s.db.Exec("DELETE FROM index_entries WHERE document_id = ?", documentID)
	return err
}

// Reset removes every entry
func (s *EntryStore) Reset() error {
	_, err := s.db.Exec("DELETE FROM index_entries")
	return err
}

// Count returns the number of persisted entries
func (s *EntryStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM index_entries").Scan(&n)
	return n, err
}

// Close closes the underlying database
func (s *EntryStore) Close() error {
	return s.db.Close()
}

// nullString returns nil for empty strings so SQL stores NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}
