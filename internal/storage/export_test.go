// ABOUTME: Tests for index export
// ABOUTME: Verifies YAML, JSON and Markdown output
package storage

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/harper/quizbot/internal/models"
)

func exportFixture(t *testing.T) *VectorIndex {
	t.Helper()
	vi := NewVectorIndex(nil)
	if err := vi.Upsert([]models.IndexEntry{
		entry("doc_b", 20, 0, 1),
		entry("doc_b", 0, 1, 0),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := vi.Upsert([]models.IndexEntry{entry("doc_a", 0, 1, 1)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	return vi
}

func TestExport_GroupsByDocument(t *testing.T) {
	data := exportFixture(t).Export(false)

	if data.Tool != "quizbot" {
		t.Errorf("Tool = %v, want quizbot", data.Tool)
	}
	if data.Dimension != 2 {
		t.Errorf("Dimension = %d, want 2", data.Dimension)
	}
	if len(data.Documents) != 2 {
		t.Fatalf("got %d documents, want 2", len(data.Documents))
	}
	if data.Documents[0].DocumentID != "doc_b" {
		t.Errorf("first document = %s, want doc_b (ingestion order)", data.Documents[0].DocumentID)
	}
	chunks := data.Documents[0].Chunks
	if len(chunks) != 2 || chunks[0].StartOffset != 0 || chunks[1].StartOffset != 20 {
		t.Errorf("chunks not in document order: %+v", chunks)
	}
	if chunks[0].Vector != nil {
		t.Error("vectors exported without being requested")
	}

	withVectors := exportFixture(t).Export(true)
	if len(withVectors.Documents[0].Chunks[0].Vector) != 2 {
		t.Error("vectors missing when requested")
	}
}

func TestWriteExport_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExport(&buf, exportFixture(t).Export(false), ExportYAML); err != nil {
		t.Fatalf("WriteExport() error = %v", err)
	}

	var decoded ExportData
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(decoded.Documents) != 2 {
		t.Errorf("decoded %d documents, want 2", len(decoded.Documents))
	}
}

func TestWriteExport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExport(&buf, exportFixture(t).Export(true), ExportJSON); err != nil {
		t.Fatalf("WriteExport() error = %v", err)
	}

	var decoded ExportData
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Documents[1].Chunks[0].Text != "doc_a@0" {
		t.Errorf("chunk text = %q", decoded.Documents[1].Chunks[0].Text)
	}
}

func TestWriteExport_Markdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExport(&buf, exportFixture(t).Export(false), "md"); err != nil {
		t.Fatalf("WriteExport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"# QuizBot Export", "## doc_b.txt", "### Chunk 0 (20-30)", "doc_a@0"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestWriteExport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExport(&buf, NewVectorIndex(nil).Export(false), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
