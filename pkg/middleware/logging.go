package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LoggingMiddleware logs every tool call at debug level on entry and at
// info level on completion, including duration and outcome.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rc := GetRequestContext(ctx)

			toolName := ""
			requestID := ""
			if rc != nil {
				toolName = rc.ToolName
				requestID = rc.RequestID
			}

			logger.DebugContext(ctx, "tool call started",
				"tool", toolName,
				"request_id", requestID,
			)

			start := time.Now()
			result, err := next(ctx, request)
			elapsed := time.Since(start)

			switch {
			case err != nil:
				logger.ErrorContext(ctx, "tool call failed",
					"tool", toolName,
					"request_id", requestID,
					"duration", elapsed,
					"error", err,
				)
			case result != nil && result.IsError:
				logger.WarnContext(ctx, "tool call returned error result",
					"tool", toolName,
					"request_id", requestID,
					"duration", elapsed,
				)
			default:
				logger.InfoContext(ctx, "tool call completed",
					"tool", toolName,
					"request_id", requestID,
					"duration", elapsed,
				)
			}

			return result, err
		}
	}
}
