// ABOUTME: SQLite database schema for the persistent vector index
// ABOUTME: One row per indexed chunk, vectors stored as little-endian float64 BLOBs
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Index entries (one per chunk)
CREATE TABLE IF NOT EXISTS index_entries (
    chunk_id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    document_id TEXT NOT NULL,
    source_name TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    overlap_with_prev INTEGER NOT NULL DEFAULT 0,
    text TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_document ON index_entries(document_id);
CREATE INDEX IF NOT EXISTS idx_entries_seq ON index_entries(seq);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
