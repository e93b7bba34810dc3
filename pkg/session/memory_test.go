package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		UserID:       "user-1",
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("chat-1")))

	sess, err := store.Get(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotNil(t, sess.Enabled)
	assert.NotNil(t, sess.Connected)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_CreateFillsTimestamps(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	before := time.Now()
	require.NoError(t, store.Create(ctx, &Session{ID: "chat-1", UserID: "user-1"}))

	sess, err := store.Get(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, sess, "freshly created session must be retrievable")
	assert.False(t, sess.CreatedAt.Before(before))
	assert.False(t, sess.LastActiveAt.Before(before))
	assert.True(t, sess.ExpiresAt.After(before.Add(50*time.Minute)),
		"expiry seeded from the store TTL")

	// Caller-provided timestamps are kept as-is.
	explicit := newSession("chat-2")
	explicit.ExpiresAt = before.Add(time.Minute)
	require.NoError(t, store.Create(ctx, explicit))
	got, _ := store.Get(ctx, "chat-2")
	assert.Equal(t, explicit.ExpiresAt, got.ExpiresAt)
}

func TestMemoryStore_GetExpired(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	sess := newSession("chat-1")
	sess.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_EnableDisable(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("chat-1")))
	require.NoError(t, store.Enable(ctx, "chat-1", "gmail"))

	sess, _ := store.Get(ctx, "chat-1")
	assert.True(t, sess.Enabled["GMAIL"], "slugs normalize on enable")

	require.NoError(t, store.Disable(ctx, "chat-1", "GMAIL"))
	sess, _ = store.Get(ctx, "chat-1")
	assert.False(t, sess.Enabled["GMAIL"])

	err := store.Enable(ctx, "unknown", "GMAIL")
	assert.Error(t, err)
}

func TestSession_IsActionable(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("chat-1")))
	require.NoError(t, store.Enable(ctx, "chat-1", "GMAIL"))

	sess, _ := store.Get(ctx, "chat-1")
	assert.False(t, sess.IsActionable("GMAIL"), "enabled but not connected")

	require.NoError(t, store.SetConnected(ctx, "chat-1", "GMAIL", true))
	sess, _ = store.Get(ctx, "chat-1")
	assert.True(t, sess.IsActionable("GMAIL"))

	// Connected but disabled is never actionable.
	require.NoError(t, store.Disable(ctx, "chat-1", "GMAIL"))
	sess, _ = store.Get(ctx, "chat-1")
	assert.False(t, sess.IsActionable("GMAIL"))
}

func TestMemoryStore_SetConnectedAll(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("chat-1")))
	require.NoError(t, store.Create(ctx, newSession("chat-2")))

	require.NoError(t, store.SetConnectedAll(ctx, "GITHUB", true))

	for _, id := range []string{"chat-1", "chat-2"} {
		sess, _ := store.Get(ctx, id)
		assert.True(t, sess.Connected["GITHUB"], "session %s", id)
	}
}

func TestSession_EnabledSlugs(t *testing.T) {
	sess := newSession("chat-1")
	sess.Enabled = map[string]bool{"GMAIL": true, "JIRA": true, "GITHUB": false}

	assert.ElementsMatch(t, []string{"GMAIL", "JIRA"}, sess.EnabledSlugs())
}

func TestMemoryStore_TouchExtendsExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	sess := newSession("chat-1")
	sess.ExpiresAt = time.Now().Add(time.Minute)
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, store.Touch(ctx, "chat-1"))

	got, _ := store.Get(ctx, "chat-1")
	assert.True(t, got.ExpiresAt.After(time.Now().Add(50*time.Minute)))
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	live := newSession("live")
	dead := newSession("dead")
	dead.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Create(ctx, live))
	require.NoError(t, store.Create(ctx, dead))

	require.NoError(t, store.Cleanup(ctx))

	got, _ := store.Get(ctx, "live")
	assert.NotNil(t, got)
	// Expired session is fully removed, not just hidden.
	err := store.Enable(ctx, "dead", "GMAIL")
	assert.Error(t, err)
}

func TestMemoryStore_CleanupRoutine(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	store.StartCleanupRoutine(10 * time.Millisecond)

	ctx := context.Background()
	dead := newSession("dead")
	dead.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Create(ctx, dead))

	assert.Eventually(t, func() bool {
		err := store.Enable(ctx, "dead", "GMAIL")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Close())
}
