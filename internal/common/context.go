package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID    contextKey = "run_id"
	ContextKeyFilePath contextKey = "file_path"
)

// WithRunID adds an extraction run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithFilePath records the document being processed
func WithFilePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, ContextKeyFilePath, path)
}

// FilePathFromContext extracts the document path from context
func FilePathFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyFilePath).(string); ok {
		return p
	}
	return ""
}

// WithTimeout creates a context with the specified timeout. A non-positive
// timeout returns a plain cancelable context.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
