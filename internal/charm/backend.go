// ABOUTME: Charm KV implementation of the vector index persistence backend
// ABOUTME: Stores one JSON value per index entry under entry:<document_id>:<chunk_id>
package charm

import (
	"fmt"

	"github.com/harper/quizbot/internal/models"
)

// Backend persists index entries in Charm KV
type Backend struct {
	client *Client
}

// NewBackend wraps an open charm client
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// LoadEntries reads every stored entry; ordering is restored by the index from Seq
func (b *Backend) LoadEntries() ([]models.IndexEntry, error) {
	keys, err := b.client.ListKeys(EntryPrefix)
	if err != nil {
		return nil, err
	}

	entries := make([]models.IndexEntry, 0, len(keys))
	for _, key := range keys {
		var e models.IndexEntry
		if err := b.client.GetJSON(key, &e); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveEntries writes entries keyed by document and chunk
func (b *Backend) SaveEntries(entries []models.IndexEntry) error {
	values := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		values[EntryKey(e.DocumentID(), e.ChunkID())] = e
	}
	return b.client.SetJSONBatch(values)
}

// DeleteDocument removes every key under the document's prefix
func (b *Backend) DeleteDocument(documentID string) error {
	keys, err := b.client.ListKeys(DocumentPrefix(documentID))
	if err != nil {
		return err
	}
	return b.client.DeleteKeys(keys)
}

// Reset removes all index entries, leaving unrelated keys alone
func (b *Backend) Reset() error {
	keys, err := b.client.ListKeys(EntryPrefix)
	if err != nil {
		return err
	}
	return b.client.DeleteKeys(keys)
}

// Close closes the charm client
func (b *Backend) Close() error {
	return b.client.Close()
}
