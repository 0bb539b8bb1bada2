// ABOUTME: OpenAI-compatible client for embeddings and text completion
// ABOUTME: Works against api.openai.com or any compatible endpoint such as Ollama
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/quizbot/internal/models"
)

const (
	// DefaultChatModel is the default model for completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second

	// ollamaAPIKey is sent when a base URL is configured without a key
	ollamaAPIKey = "ollama"
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey              string
	BaseURL             string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
	Timeout             time.Duration
	Temperature         float32
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: string(DefaultEmbeddingModel),
		Timeout:        DefaultTimeout,
		Temperature:    0.7,
	}
}

// OpenAIClient performs single-attempt calls against the model services.
// Retrying is the caller's decision; every failure is returned as a
// *models.ServiceError so callers can tell transient from permanent ones.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	dimensions     int
	timeout        time.Duration
	temperature    float32
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		if config.BaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key is required unless LLM_BASE_URL is set")
		}
		apiKey = ollamaAPIKey
	}

	oc := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embeddingModel := config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(DefaultEmbeddingModel)
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      chatModel,
		embeddingModel: openai.EmbeddingModel(embeddingModel),
		dimensions:     config.EmbeddingDimensions,
		timeout:        timeout,
		temperature:    config.Temperature,
	}, nil
}

// GetClient returns the underlying OpenAI client for direct use
func (c *OpenAIClient) GetClient() *openai.Client {
	return c.client
}

// CreateEmbeddings embeds texts in one request, returning vectors in input order
func (c *OpenAIClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      c.embeddingModel,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, &models.ServiceError{
			Kind: models.ServiceUnavailable,
			Err:  fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float64, len(data))
	for i, d := range data {
		// Convert []float32 to []float64
		v := make([]float64, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float64(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Complete sends prompt as a single user message and returns the reply text
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", &models.ServiceError{
			Kind: models.ServiceUnavailable,
			Err:  errors.New("no completion choices returned"),
		}
	}

	return resp.Choices[0].Message.Content, nil
}

// classify maps transport and API errors to service error kinds.
// Cancellation of the caller's ctx is passed through unchanged.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &models.ServiceError{Kind: models.Timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &models.ServiceError{Kind: models.Timeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &models.ServiceError{Kind: kindFor(apiErr.HTTPStatusCode, codeString(apiErr.Code), apiErr.Message), Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &models.ServiceError{Kind: kindFor(reqErr.HTTPStatusCode, "", reqErr.Error()), Err: err}
	}

	return &models.ServiceError{Kind: models.ServiceUnavailable, Err: err}
}

func kindFor(status int, code, message string) models.ServiceErrorKind {
	msg := strings.ToLower(message)
	switch {
	case code == "context_length_exceeded",
		strings.Contains(msg, "context length"),
		strings.Contains(msg, "context window"),
		strings.Contains(msg, "too many tokens"):
		return models.ContextTooLong
	case code == "model_not_found",
		status == http.StatusNotFound,
		strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return models.ModelNotLoaded
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return models.Timeout
	}
	return models.ServiceUnavailable
}

func codeString(code any) string {
	switch v := code.(type) {
	case string:
		return v
	case nil:
		return ""
	}
	return fmt.Sprint(code)
}
