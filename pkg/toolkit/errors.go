package toolkit

import (
	"errors"
	"fmt"
)

// ErrConfigurationMissing indicates no auth configuration is provisioned for
// a toolkit. Non-retryable: the toolkit cannot be connected until an
// administrator provisions it, and callers must surface it distinctly from
// transient failures.
var ErrConfigurationMissing = errors.New("toolkit auth configuration missing")

// ErrUnknownToolkit indicates the slug does not exist in the user's
// registry.
var ErrUnknownToolkit = errors.New("unknown toolkit")

// ErrPollTimeout indicates the client-side polling bound was exceeded before
// the provider reached a terminal state.
var ErrPollTimeout = errors.New("connection polling timed out")

// TransientError wraps a retryable failure from the provider (network error,
// timeout, 5xx). Callers retry with a fixed delay rather than failing hard.
type TransientError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// TerminalFailureError indicates the provider reported a terminal failure
// (FAILED or EXPIRED). The user must explicitly retry; the broker never
// retries these automatically.
type TerminalFailureError struct {
	ConnectionID string
	Status       ConnectionStatus
}

// Error implements error.
func (e *TerminalFailureError) Error() string {
	return fmt.Sprintf("connection %s ended in %s", e.ConnectionID, e.Status)
}

// IsConfigurationMissing reports whether err wraps ErrConfigurationMissing.
func IsConfigurationMissing(err error) bool {
	return errors.Is(err, ErrConfigurationMissing)
}
