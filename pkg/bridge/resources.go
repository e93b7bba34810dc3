package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// Resource template URI patterns.
const (
	toolkitTemplateURI    = "toolkit://{user_id}/{slug}"
	registryTemplateURI   = "registry://{user_id}"
	connectionTemplateURI = "connection://{connection_id}"
)

// RegisterResources registers the MCP resource templates.
func (b *Bridge) RegisterResources(s *mcp.Server) {
	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: toolkitTemplateURI,
		Name:        "Toolkit",
		Description: "A single toolkit from the user's registry, with connection state",
		MIMEType:    "application/json",
	}, b.handleToolkitResource)

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: registryTemplateURI,
		Name:        "Toolkit Registry",
		Description: "The user's full toolkit registry",
		MIMEType:    "application/json",
	}, b.handleRegistryResource)

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: connectionTemplateURI,
		Name:        "Connection Attempt",
		Description: "Last observed state of a connection attempt",
		MIMEType:    "application/json",
	}, b.handleConnectionResource)
}

// parseTemplateVars extracts named variables from a URI using a URI template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		result[name] = match.Get(name).String()
	}
	return result, nil
}

// handleToolkitResource handles toolkit://{user_id}/{slug} requests.
func (b *Bridge) handleToolkitResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(toolkitTemplateURI, uri)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	userID := vars["user_id"]
	slug := vars["slug"]
	if userID == "" || slug == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	toolkits, err := b.Toolkits(ctx, userID)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	tk, ok := toolkit.FindBySlug(toolkits, slug)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	return marshalResourceResult(uri, tk)
}

// registryResourceResult wraps the registry for serialization.
type registryResourceResult struct {
	UserID   string            `json:"user_id"`
	Toolkits []toolkit.Toolkit `json:"toolkits"`
	Count    int               `json:"count"`
}

// handleRegistryResource handles registry://{user_id} requests.
func (b *Bridge) handleRegistryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(registryTemplateURI, uri)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error
	}

	userID := vars["user_id"]
	if userID == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error
	}

	toolkits, err := b.Toolkits(ctx, userID)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error
	}

	return marshalResourceResult(uri, registryResourceResult{
		UserID:   userID,
		Toolkits: toolkits,
		Count:    len(toolkits),
	})
}

// handleConnectionResource handles connection://{connection_id} requests.
func (b *Bridge) handleConnectionResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(connectionTemplateURI, uri)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error
	}

	connectionID := vars["connection_id"]
	if connectionID == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error
	}

	att, err := b.ConnectionStatus(ctx, connectionID)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error
	}

	return marshalResourceResult(uri, att)
}

// marshalResourceResult marshals a value to JSON and wraps it in a ReadResourceResult.
func marshalResourceResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
