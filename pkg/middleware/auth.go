package middleware

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Authenticator validates authentication credentials.
type Authenticator interface {
	// Authenticate validates credentials and returns user info.
	Authenticate(ctx context.Context) (*UserInfo, error)
}

// UserInfo holds authenticated user information.
type UserInfo struct {
	UserID   string
	Email    string
	Claims   map[string]any
	Roles    []string
	AuthType string // "jwt", "apikey", etc.
}

// NewToolResultError creates an error result using the SDK's SetError method.
// The underlying error is retrievable via CallToolResult.GetError().
func NewToolResultError(errMsg string) *mcp.CallToolResult {
	result := &mcp.CallToolResult{}
	result.SetError(errors.New(errMsg))
	return result
}

// NewToolResultText creates a text result.
func NewToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// NoopAuthenticator always succeeds authentication.
type NoopAuthenticator struct {
	DefaultUserID string
	DefaultRoles  []string
}

// Authenticate always returns a default user.
func (n *NoopAuthenticator) Authenticate(_ context.Context) (*UserInfo, error) {
	userID := n.DefaultUserID
	if userID == "" {
		userID = "anonymous"
	}
	return &UserInfo{
		UserID:   userID,
		Email:    userID + "@localhost",
		Claims:   make(map[string]any),
		Roles:    n.DefaultRoles,
		AuthType: "noop",
	}, nil
}

// Verify interface compliance.
var _ Authenticator = (*NoopAuthenticator)(nil)

// AuthMiddleware authenticates the caller and records user info in the
// request context. When authentication fails the handler is not invoked
// and an error result is returned to the client.
func AuthMiddleware(authenticator Authenticator) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userInfo, err := authenticator.Authenticate(ctx)
			if err != nil {
				rc := GetRequestContext(ctx)
				if rc != nil {
					rc.Success = false
					rc.ErrorMessage = "authentication failed: " + err.Error()
				}
				return NewToolResultError("authentication failed: " + err.Error()), nil
			}

			if rc := GetRequestContext(ctx); rc != nil {
				rc.UserID = userInfo.UserID
				rc.UserEmail = userInfo.Email
				rc.UserClaims = userInfo.Claims
				rc.Roles = userInfo.Roles
			}

			return next(ctx, request)
		}
	}
}
