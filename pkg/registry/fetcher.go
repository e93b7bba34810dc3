// Package registry provides the toolkit registry fetcher: the single
// component through which every reader observes the provider's toolkit
// listing and per-user connection flags.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relayops/toolbridge/pkg/events"
	"github.com/relayops/toolbridge/pkg/provider"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

const (
	// defaultRetryDelay is the fixed delay callers wait before retrying a
	// failed fetch.
	defaultRetryDelay = 3 * time.Second

	// defaultCacheTTL bounds how long a snapshot is served without a
	// provider round-trip.
	defaultCacheTTL = 30 * time.Second

	// defaultRefreshDebounce coalesces bursts of connection-change events
	// into a single re-fetch.
	defaultRefreshDebounce = 2 * time.Second

	// refreshTimeout bounds the background re-fetch triggered by bus
	// events.
	refreshTimeout = 10 * time.Second
)

// Fetcher retrieves and caches the toolkit registry per user. It subscribes
// to the notification bus and refreshes cached snapshots (debounced) when a
// connection changes, so independent readers converge without each issuing
// their own provider call.
type Fetcher struct {
	mu        sync.RWMutex
	snapshots map[string]*snapshot

	client      provider.Client
	ttl         time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger
	debouncer   *events.Debouncer
	unsubscribe func()
}

type snapshot struct {
	toolkits  []toolkit.Toolkit
	fetchedAt time.Time
}

// Config configures a Fetcher.
type Config struct {
	// CacheTTL bounds snapshot freshness. Defaults to 30s.
	CacheTTL time.Duration

	// RetryDelay is surfaced to callers via RetryDelay(). Defaults to 3s.
	RetryDelay time.Duration

	// RefreshDebounce coalesces event-driven refreshes. Defaults to 2s.
	RefreshDebounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewFetcher creates a Fetcher. When bus is non-nil the fetcher refreshes
// cached users on ConnectionChanged events.
func NewFetcher(client provider.Client, bus *events.Bus, cfg Config) *Fetcher {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.RefreshDebounce == 0 {
		cfg.RefreshDebounce = defaultRefreshDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Fetcher{
		snapshots:  make(map[string]*snapshot),
		client:     client,
		ttl:        cfg.CacheTTL,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}

	f.debouncer = events.NewDebouncer(cfg.RefreshDebounce, f.refreshAll)
	if bus != nil {
		f.unsubscribe = bus.Subscribe(func(ev events.ConnectionChanged) {
			f.debouncer.Trigger(ev.Slug)
		})
	}
	return f
}

// Fetch returns the registry for userID, serving a fresh cached snapshot
// when one exists. Fetch failures leave any previous snapshot intact, so
// Snapshot keeps working while the caller retries after RetryDelay.
func (f *Fetcher) Fetch(ctx context.Context, userID string) ([]toolkit.Toolkit, error) {
	f.mu.RLock()
	snap, ok := f.snapshots[userID]
	f.mu.RUnlock()

	if ok && time.Since(snap.fetchedAt) < f.ttl {
		return cloneToolkits(snap.toolkits), nil
	}

	return f.fetch(ctx, userID)
}

// Refresh bypasses the cache and fetches the registry for userID.
func (f *Fetcher) Refresh(ctx context.Context, userID string) ([]toolkit.Toolkit, error) {
	return f.fetch(ctx, userID)
}

func (f *Fetcher) fetch(ctx context.Context, userID string) ([]toolkit.Toolkit, error) {
	toolkits, err := f.client.Registry(ctx, userID)
	if err != nil {
		f.logger.Warn("registry fetch failed", "user_id", userID, "error", err)
		return nil, err
	}

	f.mu.Lock()
	f.snapshots[userID] = &snapshot{toolkits: toolkits, fetchedAt: time.Now()}
	f.mu.Unlock()

	return cloneToolkits(toolkits), nil
}

// Snapshot returns the last known registry for userID without I/O. Marker
// resolution reads this so parsing never blocks on the provider.
func (f *Fetcher) Snapshot(userID string) ([]toolkit.Toolkit, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap, ok := f.snapshots[userID]
	if !ok {
		return nil, false
	}
	return cloneToolkits(snap.toolkits), true
}

// Invalidate drops the cached snapshot for userID.
func (f *Fetcher) Invalidate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshots, userID)
}

// RetryDelay is the fixed delay callers should wait before retrying a
// failed Fetch.
func (f *Fetcher) RetryDelay() time.Duration {
	return f.retryDelay
}

// refreshAll re-fetches every cached user after a connection change. Errors
// only log; the stale snapshot remains until a fetch succeeds.
func (f *Fetcher) refreshAll(slug string) {
	f.mu.RLock()
	users := make([]string, 0, len(f.snapshots))
	for userID := range f.snapshots {
		users = append(users, userID)
	}
	f.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	for _, userID := range users {
		if _, err := f.fetch(ctx, userID); err != nil {
			f.logger.Warn("registry refresh after connection change failed",
				"user_id", userID, "slug", slug, "error", err)
		}
	}
}

// Close detaches the fetcher from the bus and cancels pending refreshes.
func (f *Fetcher) Close() error {
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
	f.debouncer.Stop()
	return nil
}

func cloneToolkits(in []toolkit.Toolkit) []toolkit.Toolkit {
	out := make([]toolkit.Toolkit, len(in))
	copy(out, in)
	return out
}
