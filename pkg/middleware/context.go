// Package middleware provides the middleware chain for tool handlers.
package middleware

import (
	"context"
	"time"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	requestContextKey contextKey = iota
	tokenContextKey
)

// RequestContext holds broker-specific context for a tool call.
type RequestContext struct {
	// Request identification
	RequestID string
	SessionID string
	StartTime time.Time

	// User information
	UserID     string
	UserEmail  string
	UserClaims map[string]any
	Roles      []string

	// Tool information
	ToolName     string
	ToolkitSlug  string
	ConnectionID string

	// Transport metadata
	Transport string // "stdio" or "http"

	// Results (populated after handler)
	Success      bool
	ErrorMessage string
	Duration     time.Duration
}

// NewRequestContext creates a new request context.
func NewRequestContext(requestID string) *RequestContext {
	return &RequestContext{
		RequestID:  requestID,
		StartTime:  time.Now(),
		UserClaims: make(map[string]any),
	}
}

// WithRequestContext adds request context to the context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// GetRequestContext retrieves request context from the context.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
		return rc
	}
	return nil
}

// MustGetRequestContext retrieves request context or panics.
func MustGetRequestContext(ctx context.Context) *RequestContext {
	rc := GetRequestContext(ctx)
	if rc == nil {
		panic("request context not found in context")
	}
	return rc
}

// WithToken adds an authentication token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves an authentication token from the context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}
