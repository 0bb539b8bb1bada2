// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies environment variable parsing and validation
package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.LLM.ChatModel != "gpt-4o-mini" {
		t.Errorf("ChatModel = %s, want gpt-4o-mini", cfg.LLM.ChatModel)
	}
	if cfg.LLM.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %s, want text-embedding-3-small", cfg.LLM.EmbeddingModel)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", cfg.LLM.RetryDelay)
	}
	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d, want 500", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.Overlap != 0.15 {
		t.Errorf("Overlap = %f, want 0.15", cfg.Chunking.Overlap)
	}
	if cfg.Embedding.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.Embedding.CacheTTL)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("TopK = %d, want 7", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MaxContextChunks != 5 {
		t.Errorf("MaxContextChunks = %d, want 5", cfg.Retrieval.MaxContextChunks)
	}
	if cfg.Retrieval.SimilarityThreshold != 0.2 {
		t.Errorf("SimilarityThreshold = %f, want 0.2", cfg.Retrieval.SimilarityThreshold)
	}
	if cfg.Generator.RetryLimit != 2 {
		t.Errorf("RetryLimit = %d, want 2", cfg.Generator.RetryLimit)
	}
	if cfg.Store.Backend != StoreSQLite {
		t.Errorf("Store = %s, want sqlite", cfg.Store.Backend)
	}
	if cfg.Charm.Host != "charm.2389.dev" {
		t.Errorf("CharmHost = %s, want charm.2389.dev", cfg.Charm.Host)
	}
	if !cfg.Charm.AutoSync {
		t.Error("AutoSync = false, want true")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("log = %s/%s, want info/console", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"OPENAI_API_KEY":                 "test-key",
		"LLM_BASE_URL":                   "http://localhost:11434/v1",
		"QUIZBOT_CHAT_MODEL":             "llama3",
		"QUIZBOT_EMBEDDING_MODEL":        "nomic-embed-text",
		"QUIZBOT_EMBEDDING_DIMENSIONS":   "768",
		"QUIZBOT_TIMEOUT":                "60s",
		"QUIZBOT_MAX_RETRIES":            "5",
		"QUIZBOT_CHUNK_SIZE":             "200",
		"QUIZBOT_CHUNK_OVERLAP":          "0.25",
		"QUIZBOT_TOP_K":                  "10",
		"QUIZBOT_STORE":                  "memory",
		"CHARM_AUTO_SYNC":                "false",
		"QUIZBOT_GENERATION_RETRY_LIMIT": "0",
	})
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.LLM.APIKey != "test-key" {
		t.Errorf("APIKey = %s, want test-key", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("BaseURL = %s", cfg.LLM.BaseURL)
	}
	if cfg.LLM.ChatModel != "llama3" {
		t.Errorf("ChatModel = %s, want llama3", cfg.LLM.ChatModel)
	}
	if cfg.LLM.EmbeddingDimensions != 768 {
		t.Errorf("EmbeddingDimensions = %d, want 768", cfg.LLM.EmbeddingDimensions)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.LLM.MaxRetries)
	}
	if cfg.Chunking.ChunkSize != 200 || cfg.Chunking.Overlap != 0.25 {
		t.Errorf("Chunking = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.Retrieval.TopK)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("Store = %s, want memory", cfg.Store.Backend)
	}
	if cfg.Charm.AutoSync {
		t.Error("AutoSync = true, want false")
	}
	if cfg.Generator.RetryLimit != 0 {
		t.Errorf("RetryLimit = %d, want 0", cfg.Generator.RetryLimit)
	}
}

func TestLoad_MalformedValue(t *testing.T) {
	_, err := LoadFrom(map[string]string{"QUIZBOT_CHUNK_SIZE": "lots"})
	if err == nil {
		t.Fatal("expected parse error for non-numeric chunk size")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"max retries too high", map[string]string{"QUIZBOT_MAX_RETRIES": "11"}, "QUIZBOT_MAX_RETRIES"},
		{"max retries negative", map[string]string{"QUIZBOT_MAX_RETRIES": "-1"}, "QUIZBOT_MAX_RETRIES"},
		{"overlap at half", map[string]string{"QUIZBOT_CHUNK_OVERLAP": "0.5"}, "QUIZBOT_CHUNK_OVERLAP"},
		{"overlap negative", map[string]string{"QUIZBOT_CHUNK_OVERLAP": "-0.1"}, "QUIZBOT_CHUNK_OVERLAP"},
		{"zero chunk size", map[string]string{"QUIZBOT_CHUNK_SIZE": "0"}, "QUIZBOT_CHUNK_SIZE"},
		{"zero batch size", map[string]string{"QUIZBOT_EMBEDDING_BATCH_SIZE": "0"}, "QUIZBOT_EMBEDDING_BATCH_SIZE"},
		{"zero top k", map[string]string{"QUIZBOT_TOP_K": "0"}, "QUIZBOT_TOP_K"},
		{"zero diversity cap", map[string]string{"QUIZBOT_DIVERSITY_CAP": "0"}, "QUIZBOT_DIVERSITY_CAP"},
		{"threshold out of range", map[string]string{"QUIZBOT_SIMILARITY_THRESHOLD": "1.5"}, "QUIZBOT_SIMILARITY_THRESHOLD"},
		{"negative regen limit", map[string]string{"QUIZBOT_GENERATION_RETRY_LIMIT": "-1"}, "QUIZBOT_GENERATION_RETRY_LIMIT"},
		{"unknown store", map[string]string{"QUIZBOT_STORE": "postgres"}, "QUIZBOT_STORE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			if err == nil {
				t.Fatalf("expected validation error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"QUIZBOT_TOP_K":      "0",
		"QUIZBOT_CHUNK_SIZE": "0",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"QUIZBOT_TOP_K", "QUIZBOT_CHUNK_SIZE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"QUIZBOT_MAX_RETRIES": "2", "QUIZBOT_RETRY_DELAY": "250ms"})
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	policy := cfg.RetryPolicy()
	if policy.MaxRetries != 2 || policy.BaseDelay != 250*time.Millisecond {
		t.Errorf("RetryPolicy() = %+v", policy)
	}
}
