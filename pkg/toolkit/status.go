package toolkit

import "fmt"

// ConnectionStatus is the closed set of connection attempt states. Provider
// responses carry free-form strings; ParseStatus maps them into this type at
// the boundary so internal logic can be exhaustive.
type ConnectionStatus string

const (
	// StatusInitializing means the provider has created the connection
	// record but the OAuth exchange has not started.
	StatusInitializing ConnectionStatus = "INITIALIZING"

	// StatusInitiated means the user has been redirected and the provider
	// is waiting for the OAuth exchange to complete.
	StatusInitiated ConnectionStatus = "INITIATED"

	// StatusActive means the connection is established and usable.
	StatusActive ConnectionStatus = "ACTIVE"

	// StatusFailed means the provider reported a failed exchange.
	StatusFailed ConnectionStatus = "FAILED"

	// StatusExpired means the provider expired the attempt.
	StatusExpired ConnectionStatus = "EXPIRED"

	// StatusTimedOut is a client-side terminal state: the poller gave up
	// waiting before the provider reached a terminal state. The provider
	// never reports this value; it is treated as abandonment, not failure.
	StatusTimedOut ConnectionStatus = "TIMED_OUT"
)

// ParseStatus maps a provider status string into a ConnectionStatus.
// Unknown values are an error so new provider states surface loudly instead
// of being silently treated as pending.
func ParseStatus(s string) (ConnectionStatus, error) {
	switch ConnectionStatus(s) {
	case StatusInitializing, StatusInitiated, StatusActive, StatusFailed, StatusExpired:
		return ConnectionStatus(s), nil
	default:
		return "", fmt.Errorf("unknown connection status %q", s)
	}
}

// IsTerminal reports whether no further transition can occur from s.
func (s ConnectionStatus) IsTerminal() bool {
	switch s {
	case StatusActive, StatusFailed, StatusExpired, StatusTimedOut:
		return true
	case StatusInitializing, StatusInitiated:
		return false
	}
	return false
}

// ConnectionAttempt is a single in-flight or completed connection flow.
// Status transitions are driven exclusively by the provider (observed via
// polling) or by the client-side poll timeout.
type ConnectionAttempt struct {
	// ID is the provider's opaque connection identifier.
	ID string `json:"connection_id"`

	// ToolkitSlug identifies the toolkit being connected.
	ToolkitSlug string `json:"toolkit_slug"`

	// Status is the last observed state.
	Status ConnectionStatus `json:"status"`

	// RedirectURL is where the user completes the OAuth exchange. Only
	// meaningful before a terminal state.
	RedirectURL string `json:"redirect_url,omitempty"`
}
