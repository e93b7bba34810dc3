// Package provider defines the client contract for the external
// toolkit-connection service and its HTTP implementation. All connection
// state lives on the provider side; the broker only observes it.
package provider

import (
	"context"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// InitiateResult is returned when a connection attempt is created.
type InitiateResult struct {
	// ConnectionID is the provider's opaque identifier for the attempt.
	ConnectionID string `json:"connection_id"`

	// RedirectURL is where the user must complete the OAuth exchange.
	// Callers open it in a new browsing context so the chat is not
	// interrupted.
	RedirectURL string `json:"redirect_url"`
}

// Client is the contract the broker consumes from the connect provider.
type Client interface {
	// Registry returns all supported toolkits with per-user connection
	// flags. Implementations must tolerate a partial result: when the
	// connected-accounts lookup fails but the static listing succeeds,
	// toolkits are returned with IsConnected=false rather than failing
	// the whole fetch.
	Registry(ctx context.Context, userID string) ([]toolkit.Toolkit, error)

	// Initiate starts a connection attempt for the given auth
	// configuration on behalf of the user.
	Initiate(ctx context.Context, userID, authConfigID string) (*InitiateResult, error)

	// Status returns the current state of a connection attempt.
	Status(ctx context.Context, connectionID string) (toolkit.ConnectionStatus, error)

	// Disconnect removes a connection. Idempotent; disconnecting an
	// unknown connection is not an error.
	Disconnect(ctx context.Context, connectionID string) error
}
