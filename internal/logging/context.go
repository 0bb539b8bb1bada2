// ABOUTME: Context-scoped logger helpers
// ABOUTME: Pipeline stages attach document and stage fields to the logger in ctx
package logging

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ToContext stores logger in ctx
func ToContext(ctx context.Context, logger *zap.Logger) context.Context {
	return ctxzap.ToContext(ctx, logger)
}

// FromContext returns the logger in ctx, or a no-op logger when none is set
func FromContext(ctx context.Context) *zap.Logger {
	return ctxzap.Extract(ctx)
}

// AddFields adds fields to the logger in context and returns new context
func AddFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, logger.With(fields...))
}

// WithOperation adds an "operation" field naming the pipeline entry point
func WithOperation(ctx context.Context, operation string) context.Context {
	return AddFields(ctx, zap.String("operation", operation))
}
