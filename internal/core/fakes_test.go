// ABOUTME: Test doubles for the embedding and completion services
// ABOUTME: The bag-of-words embedder makes related texts score higher than unrelated ones
package core

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

const fakeDimension = 64

// bagOfWords hashes each lowercased word into one of fakeDimension buckets
func bagOfWords(text string) []float64 {
	v := make([]float64, fakeDimension)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 3 {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%fakeDimension]++
	}
	// Keep the vector non-zero so cosine similarity is defined
	v[fakeDimension-1] += 0.01
	return v
}

// fakeEmbeddingService records calls and can inject failures
type fakeEmbeddingService struct {
	mu       sync.Mutex
	calls    int
	requests [][]string

	// failures are returned in order before normal operation resumes
	failures []error
	// vectorFor overrides bagOfWords when set
	vectorFor func(text string) []float64
}

func (f *fakeEmbeddingService) CreateEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, append([]string(nil), texts...))
	var fail error
	if len(f.failures) > 0 {
		fail = f.failures[0]
		f.failures = f.failures[1:]
	}
	f.mu.Unlock()

	if fail != nil {
		return nil, fail
	}

	out := make([][]float64, len(texts))
	for i, t := range texts {
		if f.vectorFor != nil {
			out[i] = f.vectorFor(t)
		} else {
			out[i] = bagOfWords(t)
		}
	}
	return out, nil
}

func (f *fakeEmbeddingService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEmbeddingService) textsSent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		n += len(r)
	}
	return n
}

// fakeCompletionService replays scripted responses
type fakeCompletionService struct {
	mu        sync.Mutex
	responses []string
	failures  []error
	prompts   []string
	maxTokens []int
	// onCall runs before the response is returned
	onCall func(ctx context.Context)
	// failWith, when set, fails every call after the first failFrom calls
	failWith error
	failFrom int
}

func (f *fakeCompletionService) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.maxTokens = append(f.maxTokens, maxTokens)
	var fail error
	if len(f.failures) > 0 {
		fail = f.failures[0]
		f.failures = f.failures[1:]
	} else if f.failWith != nil && len(f.prompts) > f.failFrom {
		fail = f.failWith
	}
	var resp string
	if fail == nil && len(f.responses) > 0 {
		resp = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(ctx)
	}
	if fail != nil {
		return "", fail
	}
	return resp, nil
}

func (f *fakeCompletionService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
