// ABOUTME: Retry utilities for model service calls with exponential backoff
// ABOUTME: Shared by the embedder and question generator for consistent retry behavior
package util

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v4"
)

// CalculateBackoff returns exponential backoff with jitter
// Base delay is doubled each attempt, with random jitter up to 25%
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in bit shift (max 30 for safety)
	if attempt > 30 {
		attempt = 30
	}
	// Exponential: 2^attempt * base
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	// Cap at 30 seconds
	if backoff > 30*time.Second || backoff <= 0 {
		backoff = 30 * time.Second
	}
	// Add jitter: -25% to +25% using auto-seeded math/rand/v2
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// RetryPolicy describes how often and how patiently a service call is retried
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Options converts the policy to retry-go options bound to ctx.
// retryIf decides which errors deserve another attempt; nil retries everything.
func (p RetryPolicy) Options(ctx context.Context, retryIf func(error) bool) []retry.Option {
	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	base := p.BaseDelay

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return CalculateBackoff(base, int(n)+1)
		}),
	}
	if retryIf != nil {
		opts = append(opts, retry.RetryIf(retryIf))
	}
	return opts
}
