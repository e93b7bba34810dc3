package connect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relayops/toolbridge/pkg/events"
	"github.com/relayops/toolbridge/pkg/provider"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

const (
	// defaultInterval is the fixed delay between status checks.
	defaultInterval = 2500 * time.Millisecond

	// defaultTimeout is the wall-clock bound on polling one attempt.
	// Without it a connection stuck in INITIATED would be polled forever.
	defaultTimeout = 60 * time.Second

	// defaultGrace is the delay before the first check, giving the
	// external OAuth exchange time to begin after the redirect opens.
	defaultGrace = 3 * time.Second
)

// Poller drives the status state machine for connection attempts:
//
//	idle -> connecting -> checking -> {active | failed | expired | timed_out}
//
// Each watched attempt gets its own goroutine, which makes status checks for
// one connection strictly sequential while attempts for different
// connections progress independently.
type Poller struct {
	mu       sync.Mutex
	attempts map[string]*watchedAttempt
	closed   bool

	client     provider.Client
	bus        *events.Bus
	clock      Clock
	interval   time.Duration
	timeout    time.Duration
	grace      time.Duration
	logger     *slog.Logger
	onTerminal func(toolkit.ConnectionAttempt)

	wg sync.WaitGroup
}

// watchedAttempt is the poller's in-memory record for one attempt. The
// generation stamp is bumped on cancellation so a status response that was
// in flight when the caller cancelled is discarded instead of applied.
type watchedAttempt struct {
	att        toolkit.ConnectionAttempt
	generation uint64
	finished   bool
	cancelled  bool
	cancel     context.CancelFunc
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between status checks. Defaults to 2.5s.
	Interval time.Duration

	// Timeout is the wall-clock polling bound per attempt. Defaults to
	// 60s. When exceeded the attempt transitions to TIMED_OUT exactly
	// once and no further check is scheduled.
	Timeout time.Duration

	// Grace delays the first check after Watch. Defaults to 3s.
	Grace time.Duration

	// Clock defaults to the system clock.
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnTerminal, when set, is invoked once per attempt with the final
	// state (after the bus notification).
	OnTerminal func(toolkit.ConnectionAttempt)
}

// NewPoller creates a Poller publishing terminal transitions on bus.
func NewPoller(client provider.Client, bus *events.Bus, cfg PollerConfig) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Grace == 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Poller{
		attempts:   make(map[string]*watchedAttempt),
		client:     client,
		bus:        bus,
		clock:      cfg.Clock,
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		grace:      cfg.Grace,
		logger:     cfg.Logger,
		onTerminal: cfg.OnTerminal,
	}
}

// Watch starts polling the attempt. It returns an error when the poller is
// closed or the connection is already being watched.
func (p *Poller) Watch(att toolkit.ConnectionAttempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("poller is closed")
	}
	if existing, ok := p.attempts[att.ID]; ok && !existing.finished && !existing.cancelled {
		return fmt.Errorf("connection %s is already being polled", att.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec := &watchedAttempt{att: att, cancel: cancel}
	p.attempts[att.ID] = rec

	p.wg.Add(1)
	go p.run(ctx, rec)
	return nil
}

// Snapshot returns the last known state of a watched attempt.
func (p *Poller) Snapshot(connectionID string) (toolkit.ConnectionAttempt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.attempts[connectionID]
	if !ok {
		return toolkit.ConnectionAttempt{}, false
	}
	return rec.att, true
}

// Cancel stops polling the attempt. Idempotent; a cancelled attempt never
// schedules another check, and a status response already in flight is
// discarded. Cancellation is abandonment, not a terminal transition: no
// notification fires.
func (p *Poller) Cancel(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.attempts[connectionID]
	if !ok || rec.cancelled || rec.finished {
		return
	}
	rec.cancelled = true
	rec.generation++
	rec.cancel()
}

// Close cancels all outstanding polling and waits for the goroutines.
func (p *Poller) Close() error {
	p.mu.Lock()
	p.closed = true
	for _, rec := range p.attempts {
		if !rec.cancelled && !rec.finished {
			rec.cancelled = true
			rec.generation++
			rec.cancel()
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// run is the per-attempt polling loop.
func (p *Poller) run(ctx context.Context, rec *watchedAttempt) {
	defer p.wg.Done()
	defer rec.cancel()

	if err := p.clock.Sleep(ctx, p.grace); err != nil {
		return
	}

	deadline := p.clock.Now().Add(p.timeout)
	for {
		if !p.clock.Now().Before(deadline) {
			p.finish(rec, toolkit.StatusTimedOut)
			return
		}

		p.mu.Lock()
		gen := rec.generation
		id := rec.att.ID
		p.mu.Unlock()

		status, err := p.client.Status(ctx, id)

		if ctx.Err() != nil {
			return
		}
		if !p.apply(rec, gen, status, err) {
			return
		}

		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return
		}
	}
}

// apply folds one status response into the attempt record. It returns false
// when polling must stop: the response was stale, or a terminal state was
// reached. Errors keep the loop going; the wall-clock bound still applies.
func (p *Poller) apply(rec *watchedAttempt, gen uint64, status toolkit.ConnectionStatus, err error) bool {
	p.mu.Lock()
	if rec.generation != gen || rec.finished || rec.cancelled {
		p.mu.Unlock()
		return false
	}

	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("status check failed",
			"connection_id", rec.att.ID, "error", err)
		return true
	}

	rec.att.Status = status
	p.mu.Unlock()

	if status.IsTerminal() {
		p.finish(rec, status)
		return false
	}
	return true
}

// finish applies a terminal state exactly once and fires the notification.
// A cancelled attempt never finishes: a Cancel that lands between the loop's
// last sleep and the deadline check must not surface a TIMED_OUT transition.
func (p *Poller) finish(rec *watchedAttempt, status toolkit.ConnectionStatus) {
	p.mu.Lock()
	if rec.finished || rec.cancelled {
		p.mu.Unlock()
		return
	}
	rec.finished = true
	rec.att.Status = status
	att := rec.att
	p.mu.Unlock()

	p.logger.Info("connection attempt finished",
		"connection_id", att.ID,
		"toolkit", att.ToolkitSlug,
		"status", string(status))

	if p.bus != nil {
		p.bus.Publish(events.ConnectionChanged{
			Slug:      att.ToolkitSlug,
			Connected: status == toolkit.StatusActive,
		})
	}
	if p.onTerminal != nil {
		p.onTerminal(att)
	}
}
