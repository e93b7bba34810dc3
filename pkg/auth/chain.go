package auth

import (
	"context"
	"fmt"

	"github.com/relayops/toolbridge/pkg/middleware"
)

// ChainedAuthenticator tries multiple authenticators in order.
type ChainedAuthenticator struct {
	authenticators []middleware.Authenticator
	allowAnonymous bool
}

// ChainedAuthConfig configures the chained authenticator.
type ChainedAuthConfig struct {
	AllowAnonymous bool
}

// NewChainedAuthenticator creates a new chained authenticator.
func NewChainedAuthenticator(cfg ChainedAuthConfig, authenticators ...middleware.Authenticator) *ChainedAuthenticator {
	return &ChainedAuthenticator{
		authenticators: authenticators,
		allowAnonymous: cfg.AllowAnonymous,
	}
}

// Authenticate tries each authenticator in order.
func (c *ChainedAuthenticator) Authenticate(ctx context.Context) (*middleware.UserInfo, error) {
	var lastErr error

	for _, auth := range c.authenticators {
		userInfo, err := auth.Authenticate(ctx)
		if err == nil && userInfo != nil {
			return userInfo, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	if c.allowAnonymous {
		return &middleware.UserInfo{
			UserID:   "anonymous",
			AuthType: "anonymous",
			Claims:   make(map[string]any),
		}, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("authentication failed")
}

// Verify interface compliance.
var _ middleware.Authenticator = (*ChainedAuthenticator)(nil)
