// ABOUTME: Tests for charm key layout helpers
// ABOUTME: Document prefixes must not collide so deletes stay scoped to one document
package charm

import (
	"strings"
	"testing"
)

func TestEntryKey(t *testing.T) {
	key := EntryKey("doc_abc", "chunk_123")
	if key != "entry:doc_abc:chunk_123" {
		t.Errorf("EntryKey() = %q", key)
	}
	if !strings.HasPrefix(key, DocumentPrefix("doc_abc")) {
		t.Error("entry key should start with its document prefix")
	}
}

func TestDocumentPrefix_NoCollision(t *testing.T) {
	// doc_ab must not match entries of doc_abc
	key := EntryKey("doc_abc", "chunk_1")
	if strings.HasPrefix(key, DocumentPrefix("doc_ab")) {
		t.Errorf("prefix of doc_ab matched %q", key)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("CHARM_HOST", "charm.example.test")

	cfg := DefaultConfig()
	if cfg.Host != "charm.example.test" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.DBName != "quizbot" {
		t.Errorf("DBName = %q, want quizbot", cfg.DBName)
	}
	if !cfg.AutoSync {
		t.Error("AutoSync should default to true")
	}
}
