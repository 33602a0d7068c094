package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyActorID   contextKey = "actor_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithActorID adds the acting chat identity to the context
func WithActorID(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// ActorIDFromContext extracts the acting chat identity from context
func ActorIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyActorID).(int64)
	return id, ok
}

// WithTimeout creates a context with the specified timeout; a non-positive
// timeout returns the parent unchanged with a no-op cancel.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}
