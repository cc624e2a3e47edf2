package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/logging"
	"github.com/Saijash84/CalMate/internal/server"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler runs handler inside a "tool.<name>" span and
// records the call in the tool metrics and the audit log.
//
//	s.AddTool(tool, common.InstrumentedToolHandler("schedule_chat", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		session := GetSessionFromArgs(ctx, request.GetArguments())
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, instrumentation.NewSpanAttributeBuilder().
			WithSession(logging.SessionHash(session)).
			Build()...)
		defer span.End()

		started := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName, session).WithSpanContext(ctx)

		result, err := handler(ctx, request)
		toolErr := toolError(result, err)
		invocation.Complete(toolErr)
		if toolErr != nil {
			instrumentation.SetSpanError(span, toolErr)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		sc.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(), time.Since(started))
		sc.Audit().LogToolInvocation(invocation)
		return result, err
	}
}

// toolError folds an error result into an error value for the audit record.
func toolError(result *mcp.CallToolResult, err error) error {
	if err != nil {
		return err
	}
	if result == nil || !result.IsError {
		return nil
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok && text.Text != "" {
			return errors.New(text.Text)
		}
	}
	return errors.New("tool returned an error result")
}
