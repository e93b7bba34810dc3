package middleware

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPToolCallMiddleware adapts a handler chain to the MCP protocol layer.
// It intercepts tools/call requests before they reach tool handlers,
// initializes the request context with the tool name and transport, and
// runs the chain around the underlying dispatch. All other methods pass
// through untouched.
func MCPToolCallMiddleware(chain *Chain, transport string) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}

			call, ok := req.(*mcp.CallToolRequest)
			if !ok || call.Params == nil {
				return createErrorResult("invalid tool call request"), nil
			}
			if call.Params.Name == "" {
				return createErrorResult("missing tool name"), nil
			}

			rc := NewRequestContext(generateRequestID())
			rc.ToolName = call.Params.Name
			rc.Transport = transport
			ctx = WithRequestContext(ctx, rc)

			handler := chain.Wrap(func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				result, err := next(ctx, method, request)
				if err != nil {
					return nil, err
				}
				callResult, ok := result.(*mcp.CallToolResult)
				if !ok {
					return nil, fmt.Errorf("unexpected tool result type %T", result)
				}
				return callResult, nil
			})

			result, err := handler(ctx, call)
			if err != nil {
				return nil, err
			}
			return result, nil
		}
	}
}

// createErrorResult creates an MCP result for a request rejected by the
// middleware chain.
func createErrorResult(errMsg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: errMsg},
		},
	}
}
