// Package events provides the in-process notification bus that decouples
// components reacting to connection changes (registry cache, session store,
// admin API) from the poller that observes them.
package events

import "sync"

// ConnectionChanged is published whenever a connection attempt reaches a
// terminal state or a toolkit is disconnected. Subscribers re-fetch or
// re-derive their view of the affected toolkit.
type ConnectionChanged struct {
	// Slug identifies the toolkit whose connection state changed.
	Slug string

	// Connected is the state after the change.
	Connected bool
}

// Bus is a lightweight publish/subscribe channel for ConnectionChanged
// events. Standard pub/sub semantics: subscribers added after a publish do
// not retroactively receive it. Delivery is synchronous fan-out in publish
// order; handlers must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(ConnectionChanged)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(ConnectionChanged))}
}

// Subscribe registers fn for future events and returns an unsubscribe
// function. Unsubscribing is idempotent.
func (b *Bus) Subscribe(fn func(ConnectionChanged)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to all current subscribers.
func (b *Bus) Publish(ev ConnectionChanged) {
	b.mu.RLock()
	handlers := make([]func(ConnectionChanged), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
