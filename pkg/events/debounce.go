package events

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per key and invokes a flush callback
// once the burst goes quiet. Subscribers that re-fetch the registry wrap
// their handler in a Debouncer so several terminal transitions in quick
// succession trigger a single re-fetch instead of a thundering herd.
type Debouncer struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	delay   time.Duration
	onFlush func(key string)
}

// NewDebouncer creates a Debouncer that calls onFlush(key) once per key
// after delay has elapsed without another Trigger for that key.
// A delay of zero flushes synchronously.
func NewDebouncer(delay time.Duration, onFlush func(key string)) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{
		timers:  make(map[string]*time.Timer),
		delay:   delay,
		onFlush: onFlush,
	}
}

// Trigger records an event for key, resetting the key's quiet-period timer.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	if d.delay == 0 {
		d.mu.Unlock()
		d.onFlush(key)
		return
	}

	if t, ok := d.timers[key]; ok {
		t.Reset(d.delay)
		d.mu.Unlock()
		return
	}

	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		d.onFlush(key)
	})
	d.mu.Unlock()
}

// Stop cancels all pending flushes. Triggers after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
