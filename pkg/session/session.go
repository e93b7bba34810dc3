// Package session tracks per-chat-session activation state: which toolkits
// the user has enabled and the last known connection flag for each. It
// defines the Store interface and the Session type; state is deliberately
// transient and lives only for the chat session's lifetime.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is the activation state for one chat session.
type Session struct {
	// ID is the unique chat-session identifier.
	ID string

	// UserID identifies the session owner.
	UserID string

	// Enabled is the set of toolkit slugs the user opted into for this
	// session.
	Enabled map[string]bool

	// Connected holds the last known connection flag per slug, mirrored
	// from the registry on mount and whenever a connection completes.
	Connected map[string]bool

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	// LastActiveAt is the most recent activity timestamp.
	LastActiveAt time.Time

	// ExpiresAt is when the session expires if not touched.
	ExpiresAt time.Time
}

// IsActionable reports whether the toolkit may be acted on by the model:
// the slug is enabled for this session and its connection flag is true.
// Disabled toolkits are never actionable, whatever the connection state.
func (s *Session) IsActionable(slug string) bool {
	return s.Enabled[slug] && s.Connected[slug]
}

// EnabledSlugs returns the enabled set as a slice, for building outgoing
// chat requests.
func (s *Session) EnabledSlugs() []string {
	out := make([]string, 0, len(s.Enabled))
	for slug, on := range s.Enabled {
		if on {
			out = append(out, slug)
		}
	}
	return out
}

// Store defines the interface for session state.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID. Returns nil, nil if not found or
	// expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Enable adds a toolkit slug to the session's enabled set.
	Enable(ctx context.Context, id, slug string) error

	// Disable removes a toolkit slug from the session's enabled set.
	Disable(ctx context.Context, id, slug string) error

	// SetConnected records the last known connection flag for a slug.
	SetConnected(ctx context.Context, id, slug string, connected bool) error

	// SetConnectedAll records a connection flag for a slug across every
	// live session (used when the notification bus reports a change).
	SetConnectedAll(ctx context.Context, slug string, connected bool) error

	// Touch updates LastActiveAt and extends ExpiresAt by the store's TTL.
	Touch(ctx context.Context, id string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error

	// Close stops background routines and releases resources.
	Close() error
}
