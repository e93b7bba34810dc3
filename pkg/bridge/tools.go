package bridge

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relayops/toolbridge/pkg/marker"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

// RegisterTools registers all broker tools with the MCP server.
func (b *Bridge) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_toolkits",
		Description: "List the toolkits available to a user, with connection and activation state.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listToolkitsInput) (*mcp.CallToolResult, any, error) {
		return b.handleListToolkits(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "start_session",
		Description: "Start a chat session tracking which toolkits are enabled for the conversation.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in startSessionInput) (*mcp.CallToolResult, any, error) {
		return b.handleStartSession(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "enable_toolkit",
		Description: "Enable a toolkit for the chat session. The toolkit becomes actionable once its connection is active.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in toggleToolkitInput) (*mcp.CallToolResult, any, error) {
		return b.handleEnableToolkit(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "disable_toolkit",
		Description: "Disable a toolkit for the chat session. The provider connection is left intact.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in toggleToolkitInput) (*mcp.CallToolResult, any, error) {
		return b.handleDisableToolkit(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "initiate_connection",
		Description: "Start the OAuth connection flow for a toolkit. Returns a redirect URL the user must open; the broker polls the connection until it becomes active or fails.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in initiateConnectionInput) (*mcp.CallToolResult, any, error) {
		return b.handleInitiateConnection(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "connection_status",
		Description: "Report the last observed state of a connection attempt.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in connectionStatusInput) (*mcp.CallToolResult, any, error) {
		return b.handleConnectionStatus(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "disconnect_toolkit",
		Description: "Disconnect a toolkit for the user. Safe to call when the toolkit is not connected.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in disconnectToolkitInput) (*mcp.CallToolResult, any, error) {
		return b.handleDisconnectToolkit(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "parse_activation",
		Description: "Scan an assistant message for the tool-activation marker and resolve which toolkits the user must connect.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in parseActivationInput) (*mcp.CallToolResult, any, error) {
		return b.handleParseActivation(ctx, in)
	})
}

// toolError returns an MCP error result. Tool failures are reported in
// CallToolResult.IsError, not as Go errors, so the client sees the message.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}
}

// toolJSON marshals v into a text result.
func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err.Error()), nil, nil //nolint:nilerr // see toolError
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// toolkitEntry is one toolkit in the list_toolkits response.
type toolkitEntry struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	LogoURL     string   `json:"logo_url,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	IsConnected bool     `json:"is_connected"`
	Enabled     bool     `json:"enabled,omitempty"`
	Actionable  bool     `json:"actionable,omitempty"`
}

// listToolkitsInput selects the user (and optionally a session whose
// enabled flags are merged in).
type listToolkitsInput struct {
	UserID    string `json:"user_id" jsonschema:"ID of the user whose registry to list"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional chat session whose enabled flags to include"`
	Refresh   bool   `json:"refresh,omitempty" jsonschema:"bypass the cache and re-fetch from the provider"`
}

// listToolkitsOutput is the JSON response for the list_toolkits tool.
type listToolkitsOutput struct {
	Toolkits []toolkitEntry `json:"toolkits"`
	Count    int            `json:"count"`
}

func (b *Bridge) handleListToolkits(ctx context.Context, in listToolkitsInput) (*mcp.CallToolResult, any, error) {
	if in.UserID == "" {
		return toolError("user_id is required"), nil, nil
	}

	var (
		toolkits []toolkit.Toolkit
		err      error
	)
	if in.Refresh {
		toolkits, err = b.RefreshToolkits(ctx, in.UserID)
	} else {
		toolkits, err = b.Toolkits(ctx, in.UserID)
	}
	if err != nil {
		return toolError(err.Error() + " (retry after " + b.RetryDelay() + ")"), nil, nil
	}

	var enabled map[string]bool
	if in.SessionID != "" {
		if sess, sessErr := b.Session(ctx, in.SessionID); sessErr == nil {
			enabled = sess.Enabled
		}
	}

	entries := make([]toolkitEntry, 0, len(toolkits))
	for _, tk := range toolkits {
		entries = append(entries, toolkitEntry{
			Slug:        tk.Slug,
			Name:        tk.Name,
			Description: tk.Description,
			LogoURL:     tk.LogoURL,
			Categories:  tk.Categories,
			IsConnected: tk.IsConnected,
			Enabled:     enabled[tk.Slug],
			Actionable:  enabled[tk.Slug] && tk.IsConnected,
		})
	}

	return toolJSON(listToolkitsOutput{Toolkits: entries, Count: len(entries)})
}

// startSessionInput creates a chat session for a user.
type startSessionInput struct {
	UserID string `json:"user_id" jsonschema:"ID of the user owning the session"`
}

// sessionOutput is the JSON shape of a session in tool responses.
type sessionOutput struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	Enabled   []string `json:"enabled"`
}

func sessionToOutput(id, userID string, enabledSlugs []string) sessionOutput {
	if enabledSlugs == nil {
		enabledSlugs = []string{}
	}
	return sessionOutput{SessionID: id, UserID: userID, Enabled: enabledSlugs}
}

func (b *Bridge) handleStartSession(ctx context.Context, in startSessionInput) (*mcp.CallToolResult, any, error) {
	if in.UserID == "" {
		return toolError("user_id is required"), nil, nil
	}

	sess, err := b.StartSession(ctx, in.UserID)
	if err != nil {
		return toolError(err.Error()), nil, nil
	}

	return toolJSON(sessionToOutput(sess.ID, sess.UserID, sess.EnabledSlugs()))
}

// toggleToolkitInput enables or disables a toolkit for a session.
type toggleToolkitInput struct {
	SessionID string `json:"session_id" jsonschema:"chat session to modify"`
	Toolkit   string `json:"toolkit" jsonschema:"toolkit slug, e.g. GMAIL"`
}

func (b *Bridge) handleEnableToolkit(ctx context.Context, in toggleToolkitInput) (*mcp.CallToolResult, any, error) {
	if in.SessionID == "" || in.Toolkit == "" {
		return toolError("session_id and toolkit are required"), nil, nil
	}

	sess, err := b.EnableToolkit(ctx, in.SessionID, in.Toolkit)
	if err != nil {
		return toolError(err.Error()), nil, nil
	}

	return toolJSON(sessionToOutput(sess.ID, sess.UserID, sess.EnabledSlugs()))
}

func (b *Bridge) handleDisableToolkit(ctx context.Context, in toggleToolkitInput) (*mcp.CallToolResult, any, error) {
	if in.SessionID == "" || in.Toolkit == "" {
		return toolError("session_id and toolkit are required"), nil, nil
	}

	sess, err := b.DisableToolkit(ctx, in.SessionID, in.Toolkit)
	if err != nil {
		return toolError(err.Error()), nil, nil
	}

	return toolJSON(sessionToOutput(sess.ID, sess.UserID, sess.EnabledSlugs()))
}

// initiateConnectionInput starts a connection flow for a toolkit.
type initiateConnectionInput struct {
	UserID  string `json:"user_id" jsonschema:"ID of the user connecting the toolkit"`
	Toolkit string `json:"toolkit" jsonschema:"toolkit slug, e.g. GMAIL"`
}

// initiateConnectionOutput is the JSON response for initiate_connection.
type initiateConnectionOutput struct {
	ConnectionID string `json:"connection_id"`
	Toolkit      string `json:"toolkit"`
	Status       string `json:"status"`
	RedirectURL  string `json:"redirect_url"`
}

func (b *Bridge) handleInitiateConnection(ctx context.Context, in initiateConnectionInput) (*mcp.CallToolResult, any, error) {
	if in.UserID == "" || in.Toolkit == "" {
		return toolError("user_id and toolkit are required"), nil, nil
	}

	att, err := b.Connect(ctx, in.UserID, in.Toolkit)
	if err != nil {
		if toolkit.IsConfigurationMissing(err) {
			return toolError("toolkit " + toolkit.NormalizeSlug(in.Toolkit) + " is not configured for connections"), nil, nil
		}
		return toolError(err.Error()), nil, nil
	}

	return toolJSON(initiateConnectionOutput{
		ConnectionID: att.ID,
		Toolkit:      att.ToolkitSlug,
		Status:       string(att.Status),
		RedirectURL:  att.RedirectURL,
	})
}

// connectionStatusInput identifies the connection to inspect.
type connectionStatusInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"provider connection ID returned by initiate_connection"`
}

// connectionStatusOutput is the JSON response for connection_status.
type connectionStatusOutput struct {
	ConnectionID string `json:"connection_id"`
	Toolkit      string `json:"toolkit,omitempty"`
	Status       string `json:"status"`
	Terminal     bool   `json:"terminal"`
}

func (b *Bridge) handleConnectionStatus(ctx context.Context, in connectionStatusInput) (*mcp.CallToolResult, any, error) {
	if in.ConnectionID == "" {
		return toolError("connection_id is required"), nil, nil
	}

	att, err := b.ConnectionStatus(ctx, in.ConnectionID)
	if err != nil {
		return toolError(err.Error()), nil, nil
	}

	return toolJSON(connectionStatusOutput{
		ConnectionID: att.ID,
		Toolkit:      att.ToolkitSlug,
		Status:       string(att.Status),
		Terminal:     att.Status.IsTerminal(),
	})
}

// disconnectToolkitInput tears down a toolkit connection.
type disconnectToolkitInput struct {
	UserID  string `json:"user_id" jsonschema:"ID of the user disconnecting the toolkit"`
	Toolkit string `json:"toolkit" jsonschema:"toolkit slug, e.g. GMAIL"`
}

func (b *Bridge) handleDisconnectToolkit(ctx context.Context, in disconnectToolkitInput) (*mcp.CallToolResult, any, error) {
	if in.UserID == "" || in.Toolkit == "" {
		return toolError("user_id and toolkit are required"), nil, nil
	}

	if err := b.Disconnect(ctx, in.UserID, in.Toolkit); err != nil {
		return toolError(err.Error()), nil, nil
	}

	return toolJSON(map[string]any{
		"toolkit":      toolkit.NormalizeSlug(in.Toolkit),
		"disconnected": true,
	})
}

// parseActivationInput carries the assistant message to scan.
type parseActivationInput struct {
	UserID  string `json:"user_id" jsonschema:"user whose registry resolves the slugs"`
	Message string `json:"message" jsonschema:"assistant message text to scan for the activation marker"`
}

// requiredToolEntry is one resolved toolkit from the activation marker.
type requiredToolEntry struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	IsConnected bool   `json:"is_connected"`
}

// parseActivationOutput is the JSON response for parse_activation.
type parseActivationOutput struct {
	Required    []requiredToolEntry `json:"required_tools"`
	CleanedText string              `json:"cleaned_text"`
	HasMarker   bool                `json:"has_marker"`
}

func (b *Bridge) handleParseActivation(ctx context.Context, in parseActivationInput) (*mcp.CallToolResult, any, error) {
	if in.UserID == "" {
		return toolError("user_id is required"), nil, nil
	}

	result, err := b.ParseActivation(ctx, in.UserID, in.Message)
	if err != nil {
		return toolError(err.Error()), nil, nil
	}
	if result == nil {
		return toolJSON(parseActivationOutput{
			Required:    []requiredToolEntry{},
			CleanedText: in.Message,
			HasMarker:   false,
		})
	}

	return toolJSON(parseActivationOutput{
		Required:    requiredToEntries(result),
		CleanedText: result.CleanedText,
		HasMarker:   true,
	})
}

func requiredToEntries(result *marker.Result) []requiredToolEntry {
	entries := make([]requiredToolEntry, 0, len(result.RequiredTools))
	for _, rt := range result.RequiredTools {
		entries = append(entries, requiredToolEntry{
			Slug:        rt.Slug,
			Name:        rt.Toolkit.Name,
			IsConnected: rt.Toolkit.IsConnected,
		})
	}
	return entries
}
