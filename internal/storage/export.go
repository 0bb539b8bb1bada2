// ABOUTME: Export of the indexed course material for inspection and backup
// ABOUTME: Supports YAML, JSON and Markdown; vectors are only included on request
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Export formats
const (
	ExportYAML     = "yaml"
	ExportJSON     = "json"
	ExportMarkdown = "markdown"
)

// ExportData is the complete exportable index
type ExportData struct {
	Version    string           `yaml:"version" json:"version"`
	ExportedAt string           `yaml:"exported_at" json:"exported_at"`
	Tool       string           `yaml:"tool" json:"tool"`
	Dimension  int              `yaml:"dimension" json:"dimension"`
	Documents  []ExportDocument `yaml:"documents" json:"documents"`
}

// ExportDocument is one document with its chunks in document order
type ExportDocument struct {
	DocumentID string        `yaml:"document_id" json:"document_id"`
	SourceName string        `yaml:"source_name" json:"source_name"`
	Chunks     []ExportChunk `yaml:"chunks" json:"chunks"`
}

// ExportChunk is one chunk of a document
type ExportChunk struct {
	ChunkID     string    `yaml:"chunk_id" json:"chunk_id"`
	Position    int       `yaml:"position" json:"position"`
	StartOffset int       `yaml:"start_offset" json:"start_offset"`
	EndOffset   int       `yaml:"end_offset" json:"end_offset"`
	Text        string    `yaml:"text" json:"text"`
	Vector      []float64 `yaml:"vector,omitempty" json:"vector,omitempty"`
}

// Export snapshots the index grouped by document in ingestion order
func (vi *VectorIndex) Export(includeVectors bool) *ExportData {
	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Tool:       "quizbot",
		Dimension:  vi.Dimension(),
		Documents:  []ExportDocument{},
	}

	byDoc := make(map[string]int)
	for _, e := range vi.Entries() {
		i, ok := byDoc[e.DocumentID()]
		if !ok {
			i = len(data.Documents)
			byDoc[e.DocumentID()] = i
			data.Documents = append(data.Documents, ExportDocument{
				DocumentID: e.DocumentID(),
				SourceName: e.SourceName,
			})
		}
		chunk := ExportChunk{
			ChunkID:     e.ChunkID(),
			Position:    e.Chunk.Position,
			StartOffset: e.Chunk.StartOffset,
			EndOffset:   e.Chunk.EndOffset,
			Text:        e.Chunk.Text,
		}
		if includeVectors {
			chunk.Vector = e.Vector
		}
		data.Documents[i].Chunks = append(data.Documents[i].Chunks, chunk)
	}

	for i := range data.Documents {
		chunks := data.Documents[i].Chunks
		sort.Slice(chunks, func(a, b int) bool { return chunks[a].StartOffset < chunks[b].StartOffset })
	}
	return data
}

// WriteExport encodes data to w in the given format
func WriteExport(w io.Writer, data *ExportData, format string) error {
	switch strings.ToLower(format) {
	case ExportYAML, "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	case ExportJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case ExportMarkdown, "md":
		return writeMarkdown(w, data)
	}
	return fmt.Errorf("unknown export format %q (want yaml, json or markdown)", format)
}

func writeMarkdown(w io.Writer, data *ExportData) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# QuizBot Export\n\nGenerated: %s\n\n", data.ExportedAt)
	if len(data.Documents) == 0 {
		sb.WriteString("No documents indexed.\n")
	}
	for _, doc := range data.Documents {
		fmt.Fprintf(&sb, "## %s\n\n", doc.SourceName)
		fmt.Fprintf(&sb, "*%s, %d chunks*\n\n", doc.DocumentID, len(doc.Chunks))
		for _, ch := range doc.Chunks {
			fmt.Fprintf(&sb, "### Chunk %d (%d-%d)\n\n", ch.Position, ch.StartOffset, ch.EndOffset)
			sb.WriteString(strings.TrimSpace(ch.Text))
			sb.WriteString("\n\n")
		}
		sb.WriteString("---\n\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
