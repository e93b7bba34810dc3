package connect

import (
	"context"
	"time"
)

// Clock abstracts time for the poller so tests drive the state machine
// without real sleeps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep waits for d, respecting context cancellation. Returns
	// ctx.Err() when cancelled before the duration elapses.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock implements Clock with the system clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
