package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// MemoryStore implements Store using an in-memory map with TTL-based
// expiration. Sessions are transient by design: there is nothing worth
// persisting beyond the chat session's lifetime.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create persists a new session. Zero timestamps are filled in: CreatedAt
// and LastActiveAt become now, ExpiresAt becomes now plus the store's TTL.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActiveAt.IsZero() {
		sess.LastActiveAt = now
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = now.Add(s.ttl)
	}
	if sess.Enabled == nil {
		sess.Enabled = make(map[string]bool)
	}
	if sess.Connected == nil {
		sess.Connected = make(map[string]bool)
	}
	s.sessions[sess.ID] = sess
	return nil
}

// Get retrieves a session by ID. Returns nil, nil if not found or expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for expired
	}
	return sess, nil
}

// Enable adds a toolkit slug to the session's enabled set.
func (s *MemoryStore) Enable(_ context.Context, id, slug string) error {
	return s.update(id, func(sess *Session) {
		sess.Enabled[toolkit.NormalizeSlug(slug)] = true
	})
}

// Disable removes a toolkit slug from the session's enabled set.
func (s *MemoryStore) Disable(_ context.Context, id, slug string) error {
	return s.update(id, func(sess *Session) {
		delete(sess.Enabled, toolkit.NormalizeSlug(slug))
	})
}

// SetConnected records the last known connection flag for a slug.
func (s *MemoryStore) SetConnected(_ context.Context, id, slug string, connected bool) error {
	return s.update(id, func(sess *Session) {
		sess.Connected[toolkit.NormalizeSlug(slug)] = connected
	})
}

// SetConnectedAll records a connection flag for a slug across all sessions.
func (s *MemoryStore) SetConnectedAll(_ context.Context, slug string, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := toolkit.NormalizeSlug(slug)
	for _, sess := range s.sessions {
		sess.Connected[want] = connected
	}
	return nil
}

// Touch updates LastActiveAt and extends ExpiresAt by the store's TTL.
func (s *MemoryStore) Touch(_ context.Context, id string) error {
	return s.update(id, func(sess *Session) {
		now := time.Now()
		sess.LastActiveAt = now
		sess.ExpiresAt = now.Add(s.ttl)
	})
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Cleanup removes expired sessions.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	return nil
}

// update applies fn to the session under lock.
func (s *MemoryStore) update(id string, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	fn(sess)
	return nil
}

// StartCleanupRoutine starts a background goroutine that periodically
// removes expired sessions. The goroutine is stopped when Close is called.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Cleanup(ctx)
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
