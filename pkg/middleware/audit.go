package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relayops/toolbridge/pkg/audit"
)

// AuditMiddleware records every tool call to the audit logger after the
// handler runs. Logging is best-effort: an audit failure never fails the
// tool call.
func AuditMiddleware(logger audit.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()

			result, err := next(ctx, request)

			rc := GetRequestContext(ctx)
			if rc == nil {
				return result, err
			}

			rc.Duration = time.Since(start)
			rc.Success = err == nil && (result == nil || !result.IsError)
			if err != nil {
				rc.ErrorMessage = err.Error()
			}

			event := audit.NewToolCallEvent(rc.ToolName).
				WithRequestID(rc.RequestID).
				WithSession(rc.SessionID).
				WithUser(rc.UserID).
				WithToolkit(rc.ToolkitSlug).
				WithConnection(rc.ConnectionID).
				WithParameters(audit.SanitizeParameters(extractArguments(request))).
				WithResult(rc.Success, rc.ErrorMessage, rc.Duration.Milliseconds())

			_ = logger.Log(ctx, *event)

			return result, err
		}
	}
}

// extractArguments pulls the raw tool arguments from the request, if any.
func extractArguments(request *mcp.CallToolRequest) map[string]any {
	if request == nil || request.Params == nil || len(request.Params.Arguments) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(request.Params.Arguments, &args); err != nil {
		return nil
	}
	return args
}
