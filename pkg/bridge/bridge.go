package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/relayops/toolbridge/pkg/audit"
	"github.com/relayops/toolbridge/pkg/connect"
	"github.com/relayops/toolbridge/pkg/events"
	"github.com/relayops/toolbridge/pkg/marker"
	"github.com/relayops/toolbridge/pkg/provider"
	"github.com/relayops/toolbridge/pkg/registry"
	"github.com/relayops/toolbridge/pkg/session"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

// Bridge is the broker facade. All MCP tools and admin REST handlers go
// through it; nothing below this layer knows about transports.
type Bridge struct {
	cfg       *Config
	client    provider.Client
	bus       *events.Bus
	fetcher   *registry.Fetcher
	initiator *connect.Initiator
	poller    *connect.Poller
	sessions  session.Store
	audit     audit.Logger
	logger    *slog.Logger

	unsubscribe func()
}

// Deps carries externally constructed dependencies into New. Zero-value
// fields get sensible defaults; tests inject fakes here.
type Deps struct {
	// Client overrides the HTTP provider client built from the config.
	Client provider.Client

	// AuditLogger defaults to a slog-backed logger.
	AuditLogger audit.Logger

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a Bridge from configuration.
func New(cfg *Config, deps Deps) (*Bridge, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Client == nil {
		deps.Client = provider.NewHTTPClient(provider.HTTPConfig{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Provider.APIKey,
			Timeout: cfg.Provider.Timeout.Std(),
			Logger:  deps.Logger,
		})
	}
	if deps.AuditLogger == nil {
		deps.AuditLogger = audit.NewSlogLogger(deps.Logger)
	}

	table, err := connect.NewConfigTable(cfg.Connect.AuthConfigs)
	if err != nil {
		return nil, fmt.Errorf("building auth config table: %w", err)
	}

	bus := events.NewBus()
	auditLogger := deps.AuditLogger

	b := &Bridge{
		cfg:    cfg,
		client: deps.Client,
		bus:    bus,
		audit:  auditLogger,
		logger: deps.Logger,
	}

	b.fetcher = registry.NewFetcher(deps.Client, bus, registry.Config{
		CacheTTL:        cfg.Registry.CacheTTL.Std(),
		RetryDelay:      cfg.Registry.RetryDelay.Std(),
		RefreshDebounce: cfg.Registry.RefreshDebounce.Std(),
		Logger:          deps.Logger,
	})

	b.initiator = connect.NewInitiator(deps.Client, table, deps.Logger)

	b.poller = connect.NewPoller(deps.Client, bus, connect.PollerConfig{
		Interval: cfg.Connect.PollInterval.Std(),
		Timeout:  cfg.Connect.PollTimeout.Std(),
		Grace:    cfg.Connect.PollGrace.Std(),
		Logger:   deps.Logger,
		OnTerminal: func(att toolkit.ConnectionAttempt) {
			_ = auditLogger.Log(context.Background(), *audit.NewConnectionEvent(att))
		},
	})

	cleanupInterval := cfg.Sessions.CleanupInterval.Std()
	if cleanupInterval <= 0 {
		cleanupInterval = defaultSessionCleanupInterval
	}
	store := session.NewMemoryStore(cfg.Sessions.TTL.Std())
	store.StartCleanupRoutine(cleanupInterval)
	b.sessions = store

	// Mirror connection changes into every live session so IsActionable
	// flips without a client round-trip.
	b.unsubscribe = bus.Subscribe(func(ev events.ConnectionChanged) {
		_ = b.sessions.SetConnectedAll(context.Background(), ev.Slug, ev.Connected)
	})

	return b, nil
}

// Bus exposes the notification bus for additional subscribers.
func (b *Bridge) Bus() *events.Bus {
	return b.bus
}

// Sessions exposes the session store.
func (b *Bridge) Sessions() session.Store {
	return b.sessions
}

// Audit exposes the audit logger.
func (b *Bridge) Audit() audit.Logger {
	return b.audit
}

// Toolkits returns the registry for the user, served from cache when fresh.
func (b *Bridge) Toolkits(ctx context.Context, userID string) ([]toolkit.Toolkit, error) {
	return b.fetcher.Fetch(ctx, userID)
}

// RefreshToolkits forces a provider round-trip for the user.
func (b *Bridge) RefreshToolkits(ctx context.Context, userID string) ([]toolkit.Toolkit, error) {
	return b.fetcher.Refresh(ctx, userID)
}

// RetryDelay is how long callers should wait before retrying a failed
// registry fetch.
func (b *Bridge) RetryDelay() string {
	return b.fetcher.RetryDelay().String()
}

// StartSession creates a new chat session, seeding the connection flags
// from the user's registry.
func (b *Bridge) StartSession(ctx context.Context, userID string) (*session.Session, error) {
	s := &session.Session{
		ID:        "sess-" + uuid.NewString(),
		UserID:    userID,
		Enabled:   make(map[string]bool),
		Connected: make(map[string]bool),
	}

	if toolkits, err := b.fetcher.Fetch(ctx, userID); err == nil {
		for _, tk := range toolkits {
			s.Connected[tk.Slug] = tk.IsConnected
		}
	} else {
		b.logger.Warn("session started without registry seed", "user", userID, "error", err)
	}

	if err := b.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s, nil
}

// Session returns the session by ID, or an error when it does not exist.
func (b *Bridge) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, session.ErrNotFound)
	}
	return s, nil
}

// EnableToolkit adds the toolkit to the session's enabled set. The slug must
// exist in the user's registry.
func (b *Bridge) EnableToolkit(ctx context.Context, sessionID, slug string) (*session.Session, error) {
	s, err := b.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	toolkits, err := b.fetcher.Fetch(ctx, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("fetching registry: %w", err)
	}

	tk, ok := toolkit.FindBySlug(toolkits, slug)
	if !ok {
		return nil, fmt.Errorf("%w %s", toolkit.ErrUnknownToolkit, toolkit.NormalizeSlug(slug))
	}

	if err := b.sessions.Enable(ctx, sessionID, tk.Slug); err != nil {
		return nil, err
	}
	if err := b.sessions.SetConnected(ctx, sessionID, tk.Slug, tk.IsConnected); err != nil {
		return nil, err
	}
	return b.Session(ctx, sessionID)
}

// DisableToolkit removes the toolkit from the session's enabled set.
// Disabling never touches the provider connection.
func (b *Bridge) DisableToolkit(ctx context.Context, sessionID, slug string) (*session.Session, error) {
	if _, err := b.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := b.sessions.Disable(ctx, sessionID, toolkit.NormalizeSlug(slug)); err != nil {
		return nil, err
	}
	return b.Session(ctx, sessionID)
}

// Connect starts a connection attempt for the toolkit and begins polling
// its status. The returned attempt carries the redirect URL the user must
// open to complete the OAuth exchange.
func (b *Bridge) Connect(ctx context.Context, userID, slug string) (*toolkit.ConnectionAttempt, error) {
	att, err := b.initiator.Initiate(ctx, slug, userID)
	if err != nil {
		return nil, err
	}

	if err := b.poller.Watch(*att); err != nil {
		return nil, fmt.Errorf("watching connection %s: %w", att.ID, err)
	}

	_ = b.audit.Log(ctx, *audit.NewConnectionEvent(*att).WithUser(userID))

	return att, nil
}

// ConnectionStatus returns the last observed state of a connection. Watched
// attempts are answered from the poller; anything else goes to the provider.
func (b *Bridge) ConnectionStatus(ctx context.Context, connectionID string) (toolkit.ConnectionAttempt, error) {
	if att, ok := b.poller.Snapshot(connectionID); ok {
		return att, nil
	}

	status, err := b.client.Status(ctx, connectionID)
	if err != nil {
		return toolkit.ConnectionAttempt{}, fmt.Errorf("checking connection %s: %w", connectionID, err)
	}
	return toolkit.ConnectionAttempt{ID: connectionID, Status: status}, nil
}

// CancelConnection abandons polling for an attempt. No notification fires.
func (b *Bridge) CancelConnection(connectionID string) {
	b.poller.Cancel(connectionID)
}

// Disconnect tears down the user's connection for the toolkit and notifies
// subscribers. Disconnecting a toolkit that is not connected is a no-op.
func (b *Bridge) Disconnect(ctx context.Context, userID, slug string) error {
	toolkits, err := b.fetcher.Fetch(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetching registry: %w", err)
	}

	tk, ok := toolkit.FindBySlug(toolkits, slug)
	if !ok {
		return fmt.Errorf("%w %s", toolkit.ErrUnknownToolkit, toolkit.NormalizeSlug(slug))
	}
	if !tk.IsConnected || tk.ConnectionID == "" {
		return nil
	}

	if err := b.client.Disconnect(ctx, tk.ConnectionID); err != nil {
		return fmt.Errorf("disconnecting %s: %w", tk.Slug, err)
	}

	b.poller.Cancel(tk.ConnectionID)
	b.fetcher.Invalidate(userID)
	b.bus.Publish(events.ConnectionChanged{Slug: tk.Slug, Connected: false})

	_ = b.audit.Log(ctx, *audit.NewDisconnectEvent(tk.ConnectionID, tk.Slug).WithUser(userID))

	return nil
}

// ParseActivation scans an assistant message for the tool-activation marker
// and resolves the referenced slugs against the user's registry. A nil
// result means the message carries no actionable marker.
func (b *Bridge) ParseActivation(ctx context.Context, userID, message string) (*marker.Result, error) {
	if !marker.ContainsMarker(message) {
		return nil, nil //nolint:nilnil // no marker is not an error
	}

	toolkits, ok := b.fetcher.Snapshot(userID)
	if !ok {
		var err error
		toolkits, err = b.fetcher.Fetch(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("fetching registry: %w", err)
		}
	}

	return marker.Parse(message, toolkits), nil
}

// QueryAudit retrieves audit events matching the filter.
func (b *Bridge) QueryAudit(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	return b.audit.Query(ctx, filter)
}

// CheckProvider verifies the provider API is reachable, for readiness
// checks.
func (b *Bridge) CheckProvider(ctx context.Context) error {
	_, err := b.client.Registry(ctx, "healthcheck")
	return err
}

// Close shuts down background routines in dependency order.
func (b *Bridge) Close() error {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}

	var firstErr error
	for _, c := range []func() error{
		b.poller.Close,
		b.fetcher.Close,
		b.sessions.Close,
		b.audit.Close,
	} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
