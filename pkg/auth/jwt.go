package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relayops/toolbridge/pkg/middleware"
)

// JWTConfig holds JWT validation configuration.
type JWTConfig struct {
	// SigningKey is the shared HMAC secret used to verify tokens issued
	// by the chat backend.
	SigningKey string

	// Issuer, when set, must match the token's "iss" claim.
	Issuer string

	// Audience, when set, must match the token's "aud" claim.
	Audience string
}

// JWTAuthenticator validates HMAC-signed bearer tokens from the chat backend.
type JWTAuthenticator struct {
	signingKey []byte
	parser     *jwt.Parser
	extractor  *ClaimsExtractor
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig, extractor *ClaimsExtractor) (*JWTAuthenticator, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	if extractor == nil {
		extractor = DefaultClaimsExtractor()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTAuthenticator{
		signingKey: []byte(cfg.SigningKey),
		parser:     jwt.NewParser(opts...),
		extractor:  extractor,
	}, nil
}

// Authenticate validates the bearer token from the context and returns user info.
func (a *JWTAuthenticator) Authenticate(ctx context.Context) (*middleware.UserInfo, error) {
	tokenString := GetToken(ctx)
	if tokenString == "" {
		return nil, fmt.Errorf("no bearer token found in context")
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return a.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	uc, err := a.extractor.Extract(claims)
	if err != nil {
		return nil, fmt.Errorf("extracting claims: %w", err)
	}
	if uc.UserID == "" {
		return nil, fmt.Errorf("token is missing a subject claim")
	}

	return &middleware.UserInfo{
		UserID:   uc.UserID,
		Email:    uc.Email,
		Claims:   uc.Claims,
		Roles:    uc.Roles,
		AuthType: "jwt",
	}, nil
}

// Verify interface compliance.
var _ middleware.Authenticator = (*JWTAuthenticator)(nil)
