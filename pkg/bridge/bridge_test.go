package bridge

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/toolbridge/pkg/audit"
	"github.com/relayops/toolbridge/pkg/events"
	"github.com/relayops/toolbridge/pkg/provider/providertest"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

func testToolkits() []toolkit.Toolkit {
	return []toolkit.Toolkit{
		{Slug: "GMAIL", Name: "Gmail", Categories: []string{"email"}},
		{Slug: "SLACK", Name: "Slack", Categories: []string{"chat"}},
	}
}

// recordingAudit captures logged events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Query(context.Context, audit.QueryFilter) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Event, len(r.events))
	copy(out, r.events)
	return out, nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) byType(t audit.EventType) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestBridge(t *testing.T, fake *providertest.Fake) (*Bridge, *recordingAudit) {
	t.Helper()

	cfg := &Config{
		Provider: ProviderConfig{BaseURL: "https://connect.example.com", APIKey: "test-key"},
		Connect: ConnectConfig{
			PollInterval: Duration(2 * time.Millisecond),
			PollTimeout:  Duration(time.Second),
			PollGrace:    Duration(time.Millisecond),
			AuthConfigs:  map[string]string{"GMAIL": "ac_gmail", "SLACK": "ac_slack"},
		},
		Registry: RegistryConfig{
			CacheTTL:        Duration(time.Minute),
			RetryDelay:      Duration(3 * time.Second),
			RefreshDebounce: Duration(time.Millisecond),
		},
		Sessions: SessionsConfig{TTL: Duration(time.Minute), CleanupInterval: Duration(time.Minute)},
	}

	rec := &recordingAudit{}
	b, err := New(cfg, Deps{
		Client:      fake,
		AuditLogger: rec,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, rec
}

func TestStartSession_SeedsConnectedFromRegistry(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.SetConnected("GMAIL", true, "conn-pre")
	b, _ := newTestBridge(t, fake)

	sess, err := b.StartSession(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sess.ID, "sess-"))
	assert.Equal(t, "user-1", sess.UserID)
	assert.True(t, sess.Connected["GMAIL"])
	assert.False(t, sess.Connected["SLACK"])
	assert.Empty(t, sess.EnabledSlugs())
}

func TestStartSession_RegistryFailureStillCreates(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.RegistryErr = assert.AnError
	b, _ := newTestBridge(t, fake)

	sess, err := b.StartSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, sess.Connected)
}

func TestEnableToolkit(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.SetConnected("GMAIL", true, "conn-pre")
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	sess, err := b.StartSession(ctx, "user-1")
	require.NoError(t, err)

	// Slug matching is case-insensitive.
	updated, err := b.EnableToolkit(ctx, sess.ID, "gmail")
	require.NoError(t, err)
	assert.Equal(t, []string{"GMAIL"}, updated.EnabledSlugs())
	assert.True(t, updated.IsActionable("GMAIL"))
	assert.False(t, updated.IsActionable("SLACK"))

	_, err = b.EnableToolkit(ctx, sess.ID, "NOTION")
	assert.ErrorContains(t, err, "unknown toolkit NOTION")

	_, err = b.EnableToolkit(ctx, "sess-missing", "GMAIL")
	assert.ErrorContains(t, err, "not found")
}

func TestDisableToolkit(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	sess, err := b.StartSession(ctx, "user-1")
	require.NoError(t, err)
	_, err = b.EnableToolkit(ctx, sess.ID, "SLACK")
	require.NoError(t, err)

	updated, err := b.DisableToolkit(ctx, sess.ID, "slack")
	require.NoError(t, err)
	assert.Empty(t, updated.EnabledSlugs())

	// Disabling a toolkit that was never enabled is a no-op.
	_, err = b.DisableToolkit(ctx, sess.ID, "GMAIL")
	require.NoError(t, err)
}

func TestConnect_PollsUntilActiveAndNotifies(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.StatusScript = []toolkit.ConnectionStatus{
		toolkit.StatusInitiated,
		toolkit.StatusInitiated,
		toolkit.StatusActive,
	}
	b, rec := newTestBridge(t, fake)
	ctx := context.Background()

	changed := make(chan events.ConnectionChanged, 4)
	defer b.Bus().Subscribe(func(ev events.ConnectionChanged) { changed <- ev })()

	sess, err := b.StartSession(ctx, "user-1")
	require.NoError(t, err)
	_, err = b.EnableToolkit(ctx, sess.ID, "GMAIL")
	require.NoError(t, err)

	att, err := b.Connect(ctx, "user-1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, "GMAIL", att.ToolkitSlug)
	assert.Equal(t, toolkit.StatusInitializing, att.Status)
	assert.Contains(t, att.RedirectURL, att.ID)

	select {
	case ev := <-changed:
		assert.Equal(t, "GMAIL", ev.Slug)
		assert.True(t, ev.Connected)
	case <-time.After(2 * time.Second):
		t.Fatal("no connection change published")
	}

	// Exactly one terminal notification per attempt.
	select {
	case ev := <-changed:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}

	snap, ok := b.poller.Snapshot(att.ID)
	require.True(t, ok)
	assert.Equal(t, toolkit.StatusActive, snap.Status)

	// The bus fan-out mirrors the flag into live sessions, so the
	// enabled toolkit becomes actionable without a refetch.
	refreshed, err := b.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.IsActionable("GMAIL"))

	firstPoll := fake.StatusCalls[att.ID]
	assert.GreaterOrEqual(t, firstPoll, 3)

	// One event for the initiation, one from the poller's terminal hook.
	assert.Len(t, rec.byType(audit.EventTypeConnection), 2)
}

func TestConnect_UnconfiguredToolkit(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)

	_, err := b.Connect(context.Background(), "user-1", "NOTION")
	require.Error(t, err)
	assert.True(t, toolkit.IsConfigurationMissing(err))
}

func TestConnectionStatus(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.StatusScript = []toolkit.ConnectionStatus{toolkit.StatusActive}
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	att, err := b.Connect(ctx, "user-1", "GMAIL")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, statusErr := b.ConnectionStatus(ctx, att.ID)
		return statusErr == nil && got.Status == toolkit.StatusActive
	}, 2*time.Second, 5*time.Millisecond)

	_, err = b.ConnectionStatus(ctx, "conn-unknown")
	assert.ErrorContains(t, err, "conn-unknown")
}

func TestDisconnect(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.SetConnected("GMAIL", true, "conn-9")
	b, rec := newTestBridge(t, fake)
	ctx := context.Background()

	changed := make(chan events.ConnectionChanged, 4)
	defer b.Bus().Subscribe(func(ev events.ConnectionChanged) { changed <- ev })()

	require.NoError(t, b.Disconnect(ctx, "user-1", "gmail"))

	select {
	case ev := <-changed:
		assert.Equal(t, "GMAIL", ev.Slug)
		assert.False(t, ev.Connected)
	case <-time.After(time.Second):
		t.Fatal("no disconnect event published")
	}

	disconnectEvents := rec.byType(audit.EventTypeConnection)
	require.Len(t, disconnectEvents, 1)
	assert.Equal(t, "conn-9", disconnectEvents[0].ConnectionID)
	assert.Equal(t, audit.StatusDisconnected, disconnectEvents[0].Status,
		"user-initiated teardown is recorded as a disconnect, not an expiry")
	assert.Equal(t, "user-1", disconnectEvents[0].UserID)

	// Not connected toolkits disconnect as a no-op, with no event.
	require.NoError(t, b.Disconnect(ctx, "user-1", "SLACK"))
	assert.Len(t, rec.byType(audit.EventTypeConnection), 1)

	assert.ErrorContains(t, b.Disconnect(ctx, "user-1", "NOTION"), "unknown toolkit")
}

func TestParseActivation(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	result, err := b.ParseActivation(ctx, "user-1", "plain text, no marker")
	require.NoError(t, err)
	assert.Nil(t, result)

	msg := "You need email access.\n[TOOL_ACTIVATION_REQUIRED:GMAIL,SLACK]"
	result, err = b.ParseActivation(ctx, "user-1", msg)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.RequiredTools, 2)
	assert.Equal(t, "You need email access.", result.CleanedText)
	assert.NotContains(t, result.CleanedText, "TOOL_ACTIVATION_REQUIRED")
}

func TestParseActivation_RegistryError(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.RegistryErr = assert.AnError
	b, _ := newTestBridge(t, fake)

	_, err := b.ParseActivation(context.Background(), "user-1", "[TOOL_ACTIVATION_REQUIRED:GMAIL]")
	assert.Error(t, err)
}

func TestCheckProvider(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)

	assert.NoError(t, b.CheckProvider(context.Background()))

	fake.RegistryErr = assert.AnError
	assert.Error(t, b.CheckProvider(context.Background()))
}

func TestClose_Idempotent(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)

	require.NoError(t, b.Close())
}
