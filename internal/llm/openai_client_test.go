// ABOUTME: Tests for the OpenAI-compatible client against a local HTTP server
// ABOUTME: Covers request shape, response ordering and service error classification
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/quizbot/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClientWithConfig(&ClientConfig{
		BaseURL:        srv.URL + "/v1",
		ChatModel:      "llama3.2",
		EmbeddingModel: "nomic-embed-text",
		Timeout:        2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewOpenAIClient_RequiresKeyWithoutBaseURL(t *testing.T) {
	_, err := NewOpenAIClientWithConfig(&ClientConfig{})
	assert.Error(t, err)

	_, err = NewOpenAIClientWithConfig(&ClientConfig{BaseURL: "http://localhost:11434/v1"})
	assert.NoError(t, err)
}

func TestCreateEmbeddings_OrdersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)
		assert.Equal(t, "nomic-embed-text", req.Model)

		// Out of order on purpose
		writeJSON(w, http.StatusOK, `{"object":"list","model":"nomic-embed-text","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`)
	})

	vectors, err := client.CreateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 0}, vectors[0])
	assert.Equal(t, []float64{0, 1}, vectors[1])
}

func TestCreateEmbeddings_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	vectors, err := client.CreateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestCreateEmbeddings_CountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1]}]}`)
	})

	_, err := client.CreateEmbeddings(context.Background(), []string{"a", "b"})
	var se *models.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ServiceUnavailable, se.Kind)
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[0].Content)

		writeJSON(w, http.StatusOK, `{"id":"c1","object":"chat.completion","created":1,"model":"llama3.2",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}]}`)
	})

	out, err := client.Complete(context.Background(), "hello", 256)
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestComplete_NoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	})

	_, err := client.Complete(context.Background(), "hello", 10)
	var se *models.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ServiceUnavailable, se.Kind)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   models.ServiceErrorKind
	}{
		{
			name:   "context length exceeded",
			status: http.StatusBadRequest,
			body:   `{"error":{"message":"This model's maximum context length is 8192 tokens","type":"invalid_request_error","code":"context_length_exceeded"}}`,
			want:   models.ContextTooLong,
		},
		{
			name:   "openai model not found",
			status: http.StatusNotFound,
			body:   `{"error":{"message":"The model 'gpt-9' does not exist","type":"invalid_request_error","code":"model_not_found"}}`,
			want:   models.ModelNotLoaded,
		},
		{
			name:   "ollama model not pulled",
			status: http.StatusNotFound,
			body:   `{"error":"model \"llama3.2\" not found, try pulling it first"}`,
			want:   models.ModelNotLoaded,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"internal error","type":"server_error"}}`,
			want:   models.ServiceUnavailable,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down","type":"rate_limit"}}`,
			want:   models.ServiceUnavailable,
		},
		{
			name:   "gateway timeout",
			status: http.StatusGatewayTimeout,
			body:   `{"error":{"message":"upstream timed out","type":"server_error"}}`,
			want:   models.Timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Complete(context.Background(), "prompt", 10)
			var se *models.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.want, se.Kind)
			assert.Equal(t, tt.want != models.ContextTooLong, models.IsRetryable(err))
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client, err := NewOpenAIClientWithConfig(&ClientConfig{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.CreateEmbeddings(context.Background(), []string{"slow"})
	var se *models.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.Timeout, se.Kind)
}

func TestCallerCancellationPassesThrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "prompt", 10)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewOpenAIClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.CreateEmbeddings(context.Background(), []string{"x"})
	var se *models.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ServiceUnavailable, se.Kind)
}
