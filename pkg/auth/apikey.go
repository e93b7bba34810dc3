package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/relayops/toolbridge/pkg/middleware"
)

// APIKeyConfig holds API key configuration.
type APIKeyConfig struct {
	Keys []APIKey
}

// APIKey represents an API key entry. Keys are stored as bcrypt hashes so
// a leaked configuration file does not expose usable credentials.
type APIKey struct {
	KeyHash string   // bcrypt hash of the API key value
	Name    string   // Display name for the key
	Roles   []string // Roles assigned to this key
}

// APIKeyAuthenticator authenticates using API keys.
type APIKeyAuthenticator struct {
	keys []APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(cfg APIKeyConfig) *APIKeyAuthenticator {
	keys := make([]APIKey, len(cfg.Keys))
	copy(keys, cfg.Keys)
	return &APIKeyAuthenticator{keys: keys}
}

// Authenticate validates the API key and returns user info.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*middleware.UserInfo, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, fmt.Errorf("no API key found in context")
	}

	var matchedKey *APIKey
	for i := range a.keys {
		if bcrypt.CompareHashAndPassword([]byte(a.keys[i].KeyHash), []byte(token)) == nil {
			matchedKey = &a.keys[i]
			break
		}
	}

	if matchedKey == nil {
		return nil, fmt.Errorf("invalid API key")
	}

	return &middleware.UserInfo{
		UserID:   "apikey:" + matchedKey.Name,
		Email:    matchedKey.Name + "@apikey.local",
		Claims:   make(map[string]any),
		Roles:    matchedKey.Roles,
		AuthType: "apikey",
	}, nil
}

// HashKey produces a bcrypt hash for an API key value, suitable for
// storing in configuration.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}
	return string(hash), nil
}

// Verify interface compliance.
var _ middleware.Authenticator = (*APIKeyAuthenticator)(nil)
