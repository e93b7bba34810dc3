package audit

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// NewToolCallEvent creates an audit event for a tool invocation.
func NewToolCallEvent(toolName string) *Event {
	return &Event{
		ID:        generateEventID(),
		Type:      EventTypeToolCall,
		Timestamp: time.Now(),
		ToolName:  toolName,
	}
}

// StatusDisconnected marks a user-initiated teardown on a connection event.
// It is not a provider wire status; only the audit trail records it.
const StatusDisconnected = "DISCONNECTED"

// NewDisconnectEvent creates an audit event for a user-initiated disconnect.
func NewDisconnectEvent(connectionID, slug string) *Event {
	return &Event{
		ID:           generateEventID(),
		Type:         EventTypeConnection,
		Timestamp:    time.Now(),
		ToolkitSlug:  slug,
		ConnectionID: connectionID,
		Status:       StatusDisconnected,
		Success:      true,
	}
}

// NewConnectionEvent creates an audit event for a connection lifecycle
// transition.
func NewConnectionEvent(att toolkit.ConnectionAttempt) *Event {
	return &Event{
		ID:           generateEventID(),
		Type:         EventTypeConnection,
		Timestamp:    time.Now(),
		ToolkitSlug:  att.ToolkitSlug,
		ConnectionID: att.ID,
		Status:       string(att.Status),
		Success:      att.Status == toolkit.StatusActive,
	}
}

// WithUser adds user information to the event.
func (e *Event) WithUser(userID string) *Event {
	e.UserID = userID
	return e
}

// WithSession adds the chat session ID to the event.
func (e *Event) WithSession(sessionID string) *Event {
	e.SessionID = sessionID
	return e
}

// WithToolkit adds toolkit information to the event.
func (e *Event) WithToolkit(slug string) *Event {
	e.ToolkitSlug = slug
	return e
}

// WithConnection adds a connection ID to the event.
func (e *Event) WithConnection(connectionID string) *Event {
	e.ConnectionID = connectionID
	return e
}

// WithParameters adds parameters to the event.
func (e *Event) WithParameters(params map[string]any) *Event {
	e.Parameters = params
	return e
}

// WithResult adds result information to the event.
func (e *Event) WithResult(success bool, errorMsg string, durationMS int64) *Event {
	e.Success = success
	e.ErrorMessage = errorMsg
	e.DurationMS = durationMS
	return e
}

// WithRequestID adds a request ID to the event.
func (e *Event) WithRequestID(requestID string) *Event {
	e.RequestID = requestID
	return e
}

// generateEventID generates a unique event ID.
func generateEventID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// SanitizeParameters removes sensitive parameters from the event.
func SanitizeParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	sensitiveKeys := map[string]bool{
		"password":      true,
		"secret":        true,
		"token":         true,
		"api_key":       true,
		"authorization": true,
		"credentials":   true,
	}

	sanitized := make(map[string]any)
	for k, v := range params {
		if sensitiveKeys[k] {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}
