package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/toolbridge/pkg/provider/providertest"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

// decodeResult unmarshals a tool result's text content into out.
func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, result)
	require.False(t, result.IsError, "unexpected tool error: %+v", result.Content)
	textContent, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), out))
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.True(t, result.IsError)
	textContent, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return textContent.Text
}

func TestHandleListToolkits(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.SetConnected("GMAIL", true, "conn-1")
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	t.Run("requires user_id", func(t *testing.T) {
		result, extra, err := b.handleListToolkits(ctx, listToolkitsInput{})
		require.NoError(t, err)
		assert.Nil(t, extra)
		assert.Contains(t, errorText(t, result), "user_id is required")
	})

	t.Run("lists registry with connection flags", func(t *testing.T) {
		result, extra, err := b.handleListToolkits(ctx, listToolkitsInput{UserID: "user-1"})
		require.NoError(t, err)
		assert.Nil(t, extra)

		var out listToolkitsOutput
		decodeResult(t, result, &out)
		require.Equal(t, 2, out.Count)

		bySlug := make(map[string]toolkitEntry)
		for _, e := range out.Toolkits {
			bySlug[e.Slug] = e
		}
		assert.True(t, bySlug["GMAIL"].IsConnected)
		assert.False(t, bySlug["SLACK"].IsConnected)
		assert.False(t, bySlug["GMAIL"].Actionable)
	})

	t.Run("merges session enabled flags", func(t *testing.T) {
		sess, err := b.StartSession(ctx, "user-1")
		require.NoError(t, err)
		_, err = b.EnableToolkit(ctx, sess.ID, "GMAIL")
		require.NoError(t, err)

		result, _, err := b.handleListToolkits(ctx, listToolkitsInput{UserID: "user-1", SessionID: sess.ID})
		require.NoError(t, err)

		var out listToolkitsOutput
		decodeResult(t, result, &out)
		bySlug := make(map[string]toolkitEntry)
		for _, e := range out.Toolkits {
			bySlug[e.Slug] = e
		}
		assert.True(t, bySlug["GMAIL"].Enabled)
		assert.True(t, bySlug["GMAIL"].Actionable)
		assert.False(t, bySlug["SLACK"].Enabled)
	})

	t.Run("surfaces fetch failure with retry hint", func(t *testing.T) {
		failing := providertest.New(testToolkits()...)
		failing.RegistryErr = assert.AnError
		fb, _ := newTestBridge(t, failing)

		result, _, err := fb.handleListToolkits(ctx, listToolkitsInput{UserID: "user-1"})
		require.NoError(t, err)
		assert.Contains(t, errorText(t, result), "retry after 3s")
	})
}

func TestHandleSessionTools(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	result, _, err := b.handleStartSession(ctx, startSessionInput{UserID: "user-1"})
	require.NoError(t, err)

	var sess sessionOutput
	decodeResult(t, result, &sess)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Empty(t, sess.Enabled)

	result, _, err = b.handleEnableToolkit(ctx, toggleToolkitInput{SessionID: sess.SessionID, Toolkit: "gmail"})
	require.NoError(t, err)
	decodeResult(t, result, &sess)
	assert.Equal(t, []string{"GMAIL"}, sess.Enabled)

	result, _, err = b.handleDisableToolkit(ctx, toggleToolkitInput{SessionID: sess.SessionID, Toolkit: "GMAIL"})
	require.NoError(t, err)
	decodeResult(t, result, &sess)
	assert.Empty(t, sess.Enabled)

	result, _, err = b.handleEnableToolkit(ctx, toggleToolkitInput{SessionID: sess.SessionID})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "session_id and toolkit are required")

	result, _, err = b.handleStartSession(ctx, startSessionInput{})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "user_id is required")
}

func TestHandleInitiateConnection(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	result, _, err := b.handleInitiateConnection(ctx, initiateConnectionInput{UserID: "user-1", Toolkit: "gmail"})
	require.NoError(t, err)

	var out initiateConnectionOutput
	decodeResult(t, result, &out)
	assert.Equal(t, "GMAIL", out.Toolkit)
	assert.Equal(t, "INITIALIZING", out.Status)
	assert.Contains(t, out.RedirectURL, out.ConnectionID)

	result, _, err = b.handleInitiateConnection(ctx, initiateConnectionInput{UserID: "user-1", Toolkit: "NOTION"})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "NOTION is not configured")
}

func TestHandleConnectionStatus(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.StatusScript = []toolkit.ConnectionStatus{toolkit.StatusInitiated}
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	att, err := b.Connect(ctx, "user-1", "GMAIL")
	require.NoError(t, err)

	result, _, err := b.handleConnectionStatus(ctx, connectionStatusInput{ConnectionID: att.ID})
	require.NoError(t, err)

	var out connectionStatusOutput
	decodeResult(t, result, &out)
	assert.Equal(t, att.ID, out.ConnectionID)
	assert.Equal(t, "GMAIL", out.Toolkit)

	result, _, err = b.handleConnectionStatus(ctx, connectionStatusInput{})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "connection_id is required")
}

func TestHandleDisconnectToolkit(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.SetConnected("SLACK", true, "conn-5")
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	result, _, err := b.handleDisconnectToolkit(ctx, disconnectToolkitInput{UserID: "user-1", Toolkit: "slack"})
	require.NoError(t, err)

	var out map[string]any
	decodeResult(t, result, &out)
	assert.Equal(t, "SLACK", out["toolkit"])
	assert.Equal(t, true, out["disconnected"])

	result, _, err = b.handleDisconnectToolkit(ctx, disconnectToolkitInput{UserID: "user-1", Toolkit: "NOTION"})
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "unknown toolkit")
}

func TestHandleParseActivation(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	fake.SetConnected("GMAIL", true, "conn-1")
	b, _ := newTestBridge(t, fake)
	ctx := context.Background()

	t.Run("no marker", func(t *testing.T) {
		result, _, err := b.handleParseActivation(ctx, parseActivationInput{UserID: "user-1", Message: "hello"})
		require.NoError(t, err)

		var out parseActivationOutput
		decodeResult(t, result, &out)
		assert.False(t, out.HasMarker)
		assert.Equal(t, "hello", out.CleanedText)
		assert.Empty(t, out.Required)
	})

	t.Run("marker resolves slugs", func(t *testing.T) {
		msg := "Connect these first. [TOOL_ACTIVATION_REQUIRED:GMAIL,SLACK]"
		result, _, err := b.handleParseActivation(ctx, parseActivationInput{UserID: "user-1", Message: msg})
		require.NoError(t, err)

		var out parseActivationOutput
		decodeResult(t, result, &out)
		assert.True(t, out.HasMarker)
		assert.Equal(t, "Connect these first.", out.CleanedText)
		require.Len(t, out.Required, 2)

		bySlug := make(map[string]requiredToolEntry)
		for _, e := range out.Required {
			bySlug[e.Slug] = e
		}
		assert.True(t, bySlug["GMAIL"].IsConnected)
		assert.False(t, bySlug["SLACK"].IsConnected)
	})
}

func TestRegisterTools(t *testing.T) {
	fake := providertest.New(testToolkits()...)
	b, _ := newTestBridge(t, fake)

	server := mcp.NewServer(&mcp.Implementation{Name: "toolbridge", Version: "test"}, nil)
	b.RegisterTools(server)
	b.RegisterResources(server)
}
