// Package connect implements the connection flow: initiating an OAuth-style
// connection attempt for a toolkit and polling its status until a terminal
// state. Attempts for different connections are fully independent; within
// one attempt, status checks are strictly sequential.
package connect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relayops/toolbridge/pkg/provider"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

// ConfigTable maps toolkit slugs to provider auth configuration IDs. Keys
// are normalized slugs; a toolkit without an entry cannot be connected until
// an administrator provisions one.
type ConfigTable map[string]string

// NewConfigTable builds a table from raw config, normalizing keys and
// rejecting empty configuration IDs (an empty-string sentinel would turn a
// provisioning gap into a confusing provider error later).
func NewConfigTable(raw map[string]string) (ConfigTable, error) {
	table := make(ConfigTable, len(raw))
	for slug, configID := range raw {
		if configID == "" {
			return nil, fmt.Errorf("toolkit %s: empty auth config id", toolkit.NormalizeSlug(slug))
		}
		table[toolkit.NormalizeSlug(slug)] = configID
	}
	return table, nil
}

// Lookup returns the auth configuration ID for slug. A missing entry is
// wrapped ErrConfigurationMissing: terminal, non-retryable, and surfaced to
// the user distinctly from transient failures.
func (t ConfigTable) Lookup(slug string) (string, error) {
	configID, ok := t[toolkit.NormalizeSlug(slug)]
	if !ok {
		return "", fmt.Errorf("toolkit %s: %w", toolkit.NormalizeSlug(slug), toolkit.ErrConfigurationMissing)
	}
	return configID, nil
}

// Initiator starts connection attempts.
type Initiator struct {
	client provider.Client
	table  ConfigTable
	logger *slog.Logger
}

// NewInitiator creates an Initiator.
func NewInitiator(client provider.Client, table ConfigTable, logger *slog.Logger) *Initiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{client: client, table: table, logger: logger}
}

// Initiate starts a connection attempt for the toolkit on behalf of userID.
// The caller is responsible for opening the attempt's RedirectURL in a new
// browsing context and handing the attempt to a Poller after the grace
// delay.
func (i *Initiator) Initiate(ctx context.Context, slug, userID string) (*toolkit.ConnectionAttempt, error) {
	configID, err := i.table.Lookup(slug)
	if err != nil {
		return nil, err
	}

	result, err := i.client.Initiate(ctx, userID, configID)
	if err != nil {
		return nil, fmt.Errorf("initiating connection for %s: %w", toolkit.NormalizeSlug(slug), err)
	}

	i.logger.Info("connection initiated",
		"toolkit", toolkit.NormalizeSlug(slug),
		"connection_id", result.ConnectionID)

	return &toolkit.ConnectionAttempt{
		ID:          result.ConnectionID,
		ToolkitSlug: toolkit.NormalizeSlug(slug),
		Status:      toolkit.StatusInitializing,
		RedirectURL: result.RedirectURL,
	}, nil
}
