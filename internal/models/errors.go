// ABOUTME: Error taxonomy for the quiz generation pipeline
// ABOUTME: Structural failures are sentinels; service failures carry a classified kind
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument means the document has no text after whitespace trimming
	ErrEmptyDocument = errors.New("empty document")
	// ErrDimensionMismatch means a vector disagrees with the index's dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingUnavailable means the embedding service failed after all retries
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrNoRelevantContext means the index holds nothing relevant to the query
	ErrNoRelevantContext = errors.New("no relevant context")
	// ErrPartialGeneration is a warning: fewer valid questions than requested
	ErrPartialGeneration = errors.New("partial generation")
	// ErrCompletionFailure means the completion service failed after all retries
	ErrCompletionFailure = errors.New("completion service failure")
	// ErrValidation marks a single generated question that failed validation
	ErrValidation = errors.New("question validation failed")
)

// ServiceErrorKind classifies failures of the external model services
type ServiceErrorKind string

const (
	ServiceUnavailable ServiceErrorKind = "service_unavailable"
	ModelNotLoaded     ServiceErrorKind = "model_not_loaded"
	Timeout            ServiceErrorKind = "timeout"
	ContextTooLong     ServiceErrorKind = "context_too_long"
	// NotConfigured means no model endpoint or credentials were provided
	NotConfigured ServiceErrorKind = "not_configured"
)

// ServiceError is returned by embedding and completion adapters
type ServiceError struct {
	Kind ServiceErrorKind
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed
func (e *ServiceError) Retryable() bool {
	return e.Kind != ContextTooLong && e.Kind != NotConfigured
}

// IsRetryable reports whether err is worth another attempt.
// Unclassified errors are treated as transient.
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// Classified reports whether err matches the taxonomy above
func Classified(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return true
	}
	for _, sentinel := range []error{
		ErrEmptyDocument, ErrDimensionMismatch, ErrEmbeddingUnavailable, ErrNoRelevantContext,
		ErrPartialGeneration, ErrCompletionFailure, ErrValidation,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// UserMessage turns a pipeline error into an actionable sentence for end users
func UserMessage(err error) string {
	var se *ServiceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyDocument):
		return "The document is empty. Upload material that contains text."
	case errors.Is(err, ErrNoRelevantContext):
		return "Insufficient material: add more course material covering this topic."
	case errors.Is(err, ErrDimensionMismatch):
		return "The embedding model changed since the index was built. Reset the index and re-ingest your material."
	case errors.As(err, &se) && se.Kind == NotConfigured:
		return "No model service is configured. Set OPENAI_API_KEY, or LLM_BASE_URL for a local Ollama server."
	case errors.As(err, &se) && se.Kind == ContextTooLong:
		return "The request exceeded the model's context window. Lower the context budget or the question count."
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "The embedding service is unavailable. Check that it is running and the model is loaded."
	case errors.Is(err, ErrPartialGeneration):
		return "The model did not produce any valid questions. Try again or pick a narrower topic."
	case errors.Is(err, ErrCompletionFailure):
		return "The text-completion service failed. Check that it is running and try again."
	}
	return fmt.Sprintf("Unexpected error: %v", err)
}
