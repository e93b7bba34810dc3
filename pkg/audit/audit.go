// Package audit provides audit logging for the broker: connection lifecycle
// transitions and tool invocations.
package audit

import (
	"context"
	"time"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves audit events matching the filter.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// EventType categorizes audit events.
type EventType string

const (
	// EventTypeToolCall is a tool invocation on the broker.
	EventTypeToolCall EventType = "tool_call"

	// EventTypeConnection is a connection lifecycle transition
	// (initiated, active, failed, expired, timed out, disconnected).
	EventTypeConnection EventType = "connection"
)

// Event represents an auditable event.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	DurationMS   int64          `json:"duration_ms"`
	RequestID    string         `json:"request_id"`
	SessionID    string         `json:"session_id,omitempty"`
	UserID       string         `json:"user_id"`
	ToolName     string         `json:"tool_name,omitempty"`
	ToolkitSlug  string         `json:"toolkit_slug,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Status       string         `json:"status,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	Type         EventType
	UserID       string
	SessionID    string
	ToolkitSlug  string
	ConnectionID string
	Success      *bool
	Limit        int
	Offset       int
}

// Config configures audit logging.
type Config struct {
	Enabled       bool
	RetentionDays int
}
