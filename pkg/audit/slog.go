package audit

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogLogger implements Logger by writing events to a structured logger.
// Used when no database is configured; Query is unsupported.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a SlogLogger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log writes the event as a structured log line.
func (l *SlogLogger) Log(_ context.Context, event Event) error {
	l.logger.Info("audit",
		"event_id", event.ID,
		"type", string(event.Type),
		"request_id", event.RequestID,
		"user_id", event.UserID,
		"session_id", event.SessionID,
		"tool_name", event.ToolName,
		"toolkit_slug", event.ToolkitSlug,
		"connection_id", event.ConnectionID,
		"status", event.Status,
		"success", event.Success,
		"error", event.ErrorMessage,
		"duration_ms", event.DurationMS,
	)
	return nil
}

// Query is not supported by the slog backend.
func (l *SlogLogger) Query(context.Context, QueryFilter) ([]Event, error) {
	return nil, fmt.Errorf("audit query requires a database-backed logger")
}

// Close is a no-op.
func (l *SlogLogger) Close() error { return nil }

// NoopLogger discards all audit events.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(context.Context, Event) error { return nil }

// Query returns no events.
func (NoopLogger) Query(context.Context, QueryFilter) ([]Event, error) { return nil, nil }

// Close is a no-op.
func (NoopLogger) Close() error { return nil }

// Verify interface compliance.
var (
	_ Logger = (*SlogLogger)(nil)
	_ Logger = NoopLogger{}
)
