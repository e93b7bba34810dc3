package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	// BaseURL is the provider API root, without a trailing slash.
	BaseURL string

	// APIKey authenticates the broker with the provider.
	APIKey string

	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration

	// Logger receives request-level logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

// toolkitItem is the provider's toolkit listing shape.
type toolkitItem struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	LogoURL     string   `json:"logo"`
	Categories  []string `json:"categories"`
}

// accountItem is the provider's connected-account shape.
type accountItem struct {
	ID          string `json:"id"`
	ToolkitSlug string `json:"toolkit_slug"`
	Status      string `json:"status"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// Registry returns all toolkits with connection flags for the user.
// A failed connected-accounts lookup degrades to IsConnected=false for every
// toolkit instead of failing the fetch.
func (c *HTTPClient) Registry(ctx context.Context, userID string) ([]toolkit.Toolkit, error) {
	var listing listResponse[toolkitItem]
	if err := c.get(ctx, "/api/v1/toolkits", &listing); err != nil {
		return nil, err
	}

	connected := make(map[string]string)
	query := url.Values{"user_id": {userID}}
	var accounts listResponse[accountItem]
	if err := c.get(ctx, "/api/v1/connected_accounts?"+query.Encode(), &accounts); err != nil {
		c.logger.Warn("connected accounts lookup failed, returning toolkits as disconnected",
			"user_id", userID, "error", err)
	} else {
		for _, acct := range accounts.Items {
			status, err := toolkit.ParseStatus(acct.Status)
			if err != nil || status != toolkit.StatusActive {
				continue
			}
			connected[toolkit.NormalizeSlug(acct.ToolkitSlug)] = acct.ID
		}
	}

	toolkits := make([]toolkit.Toolkit, 0, len(listing.Items))
	for _, item := range listing.Items {
		slug := toolkit.NormalizeSlug(item.Slug)
		connID, ok := connected[slug]
		toolkits = append(toolkits, toolkit.Toolkit{
			Slug:         slug,
			Name:         item.Name,
			Description:  item.Description,
			LogoURL:      item.LogoURL,
			Categories:   item.Categories,
			IsConnected:  ok,
			ConnectionID: connID,
		})
	}
	return toolkits, nil
}

// Initiate starts a connection attempt.
func (c *HTTPClient) Initiate(ctx context.Context, userID, authConfigID string) (*InitiateResult, error) {
	body := map[string]string{
		"user_id":        userID,
		"auth_config_id": authConfigID,
	}

	var resp struct {
		ID          string `json:"id"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.post(ctx, "/api/v1/connected_accounts", body, &resp); err != nil {
		return nil, err
	}

	return &InitiateResult{ConnectionID: resp.ID, RedirectURL: resp.RedirectURL}, nil
}

// Status returns the provider's current state for a connection attempt.
func (c *HTTPClient) Status(ctx context.Context, connectionID string) (toolkit.ConnectionStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/v1/connected_accounts/"+connectionID, &resp); err != nil {
		return "", err
	}

	status, err := toolkit.ParseStatus(resp.Status)
	if err != nil {
		return "", fmt.Errorf("connection %s: %w", connectionID, err)
	}
	return status, nil
}

// Disconnect removes a connection. A 404 from the provider is treated as
// success so retries stay safe.
func (c *HTTPClient) Disconnect(ctx context.Context, connectionID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/connected_accounts/"+connectionID, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return toolkit.Transient("disconnecting "+connectionID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return c.checkStatus(resp, "disconnecting "+connectionID)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, "GET "+path, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "POST "+path, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, op string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return toolkit.Transient(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp, op); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// checkStatus converts non-2xx responses into errors. 5xx and 429 are
// transient; other client errors are permanent.
func (c *HTTPClient) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return toolkit.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Verify interface compliance.
var _ Client = (*HTTPClient)(nil)
