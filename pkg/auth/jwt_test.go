package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{SigningKey: testSigningKey}, nil)
	require.NoError(t, err)

	tokenString := signToken(t, testSigningKey, jwt.MapClaims{
		"sub":   "user-1",
		"email": "user-1@example.com",
		"roles": []string{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	ctx := WithToken(context.Background(), tokenString)
	userInfo, err := authenticator.Authenticate(ctx)
	require.NoError(t, err)

	assert.Equal(t, "user-1", userInfo.UserID)
	assert.Equal(t, "user-1@example.com", userInfo.Email)
	assert.Equal(t, []string{"admin"}, userInfo.Roles)
	assert.Equal(t, "jwt", userInfo.AuthType)
}

func TestJWTAuthenticator_WrongKey(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{SigningKey: testSigningKey}, nil)
	require.NoError(t, err)

	tokenString := signToken(t, "other-key", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	ctx := WithToken(context.Background(), tokenString)
	_, err = authenticator.Authenticate(ctx)
	assert.Error(t, err)
}

func TestJWTAuthenticator_ExpiredToken(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{SigningKey: testSigningKey}, nil)
	require.NoError(t, err)

	tokenString := signToken(t, testSigningKey, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	ctx := WithToken(context.Background(), tokenString)
	_, err = authenticator.Authenticate(ctx)
	assert.Error(t, err)
}

func TestJWTAuthenticator_MissingExpiration(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{SigningKey: testSigningKey}, nil)
	require.NoError(t, err)

	tokenString := signToken(t, testSigningKey, jwt.MapClaims{
		"sub": "user-1",
	})

	ctx := WithToken(context.Background(), tokenString)
	_, err = authenticator.Authenticate(ctx)
	assert.Error(t, err)
}

func TestJWTAuthenticator_IssuerMismatch(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{
		SigningKey: testSigningKey,
		Issuer:     "chat-backend",
	}, nil)
	require.NoError(t, err)

	tokenString := signToken(t, testSigningKey, jwt.MapClaims{
		"sub": "user-1",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	ctx := WithToken(context.Background(), tokenString)
	_, err = authenticator.Authenticate(ctx)
	assert.Error(t, err)
}

func TestJWTAuthenticator_MissingSubject(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{SigningKey: testSigningKey}, nil)
	require.NoError(t, err)

	tokenString := signToken(t, testSigningKey, jwt.MapClaims{
		"email": "user-1@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	ctx := WithToken(context.Background(), tokenString)
	_, err = authenticator.Authenticate(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subject")
}

func TestJWTAuthenticator_NoToken(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(JWTConfig{SigningKey: testSigningKey}, nil)
	require.NoError(t, err)

	_, err = authenticator.Authenticate(context.Background())
	assert.Error(t, err)
}

func TestNewJWTAuthenticator_RequiresKey(t *testing.T) {
	_, err := NewJWTAuthenticator(JWTConfig{}, nil)
	assert.Error(t, err)
}
