// Package providertest provides an in-memory provider.Client for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/relayops/toolbridge/pkg/provider"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

// Fake is an in-memory provider.Client. Connection attempts advance through
// a scripted status sequence, one step per Status call, which mirrors how
// the real provider is observed via polling.
type Fake struct {
	mu sync.Mutex

	toolkits []toolkit.Toolkit
	attempts map[string]*scriptedAttempt
	nextID   int

	// RegistryErr, when set, is returned from Registry.
	RegistryErr error

	// InitiateErr, when set, is returned from Initiate.
	InitiateErr error

	// StatusScript is assigned to newly initiated attempts. The final
	// entry repeats once the script is exhausted.
	StatusScript []toolkit.ConnectionStatus

	// StatusCalls counts Status invocations per connection ID.
	StatusCalls map[string]int
}

type scriptedAttempt struct {
	authConfigID string
	script       []toolkit.ConnectionStatus
	step         int
}

// New creates a Fake pre-loaded with the given toolkits.
func New(toolkits ...toolkit.Toolkit) *Fake {
	return &Fake{
		toolkits:     toolkits,
		attempts:     make(map[string]*scriptedAttempt),
		StatusScript: []toolkit.ConnectionStatus{toolkit.StatusActive},
		StatusCalls:  make(map[string]int),
	}
}

// Script registers a scripted attempt under a fixed connection ID without
// going through Initiate, for tests that watch a known ID directly.
func (f *Fake) Script(connectionID string, statuses ...toolkit.ConnectionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	script := make([]toolkit.ConnectionStatus, len(statuses))
	copy(script, statuses)
	f.attempts[connectionID] = &scriptedAttempt{script: script}
}

// StatusCallCount returns how many times Status was called for the
// connection. Safe to call while polling is in flight.
func (f *Fake) StatusCallCount(connectionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StatusCalls[connectionID]
}

// SetToolkits replaces the registry contents.
func (f *Fake) SetToolkits(toolkits []toolkit.Toolkit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolkits = toolkits
}

// SetConnected flips the connection flag for a toolkit in the registry.
func (f *Fake) SetConnected(slug string, connected bool, connectionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.toolkits {
		if f.toolkits[i].Slug == toolkit.NormalizeSlug(slug) {
			f.toolkits[i].IsConnected = connected
			f.toolkits[i].ConnectionID = connectionID
		}
	}
}

// Registry returns the configured toolkits.
func (f *Fake) Registry(_ context.Context, _ string) ([]toolkit.Toolkit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RegistryErr != nil {
		return nil, f.RegistryErr
	}
	out := make([]toolkit.Toolkit, len(f.toolkits))
	copy(out, f.toolkits)
	return out, nil
}

// Initiate creates a scripted attempt.
func (f *Fake) Initiate(_ context.Context, _, authConfigID string) (*provider.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.InitiateErr != nil {
		return nil, f.InitiateErr
	}

	f.nextID++
	id := fmt.Sprintf("conn-%d", f.nextID)
	script := make([]toolkit.ConnectionStatus, len(f.StatusScript))
	copy(script, f.StatusScript)
	f.attempts[id] = &scriptedAttempt{authConfigID: authConfigID, script: script}

	return &provider.InitiateResult{
		ConnectionID: id,
		RedirectURL:  "https://connect.example.com/oauth/" + id,
	}, nil
}

// Status advances the attempt's script by one step and returns the result.
func (f *Fake) Status(_ context.Context, connectionID string) (toolkit.ConnectionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.StatusCalls[connectionID]++

	att, ok := f.attempts[connectionID]
	if !ok {
		return "", fmt.Errorf("unknown connection %s", connectionID)
	}

	idx := att.step
	if idx >= len(att.script) {
		idx = len(att.script) - 1
	}
	att.step++
	return att.script[idx], nil
}

// Disconnect removes the attempt. Unknown IDs are not an error.
func (f *Fake) Disconnect(_ context.Context, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, connectionID)
	return nil
}

// Verify interface compliance.
var _ provider.Client = (*Fake)(nil)
