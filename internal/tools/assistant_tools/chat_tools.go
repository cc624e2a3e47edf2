package assistant_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/nlu"
	"github.com/Saijash84/CalMate/internal/server"
	"github.com/Saijash84/CalMate/internal/tools/common"
)

// ChatResult is the JSON body returned by schedule_chat.
type ChatResult struct {
	Session string `json:"session,omitempty"`
	assistant.Response
}

// RegisterChatTools registers the conversational tool with the MCP server
func RegisterChatTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	chatTool := mcp.NewTool("schedule_chat",
		mcp.WithDescription("Send one natural-language scheduling message to the assistant. "+
			"It can book, cancel, edit ('move my 2pm meeting to 4pm'), list events and check availability. "+
			"Pass the same session on follow-up turns so references like 'it' resolve."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user message, e.g. \"Book 'Sync' tomorrow at 10am for 30 minutes\""),
		),
		mcp.WithString("session",
			mcp.Description("Conversation id. Defaults to the MCP client session."),
		),
		mcp.WithString("history",
			mcp.Description("Optional JSON array of prior turns: [{\"role\":\"user|assistant\",\"content\":\"...\"}]"),
		),
	)

	s.AddTool(chatTool, common.InstrumentedToolHandler("schedule_chat", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleChat(ctx, request, sc)
		}))

	return nil
}

func handleChat(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message, ok := args["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	history, err := parseHistory(args["history"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session := common.GetSessionFromArgs(ctx, args)
	resp := sc.Assistant().Handle(ctx, assistant.Request{
		SessionID: session,
		Message:   message,
		History:   history,
	})

	out, err := json.MarshalIndent(ChatResult{Session: session, Response: resp}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode response: %v", err)), nil
	}
	if resp.Operation == assistant.OpError {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// parseHistory accepts the history argument as a JSON string or as an
// already decoded array.
func parseHistory(v interface{}) ([]nlu.Message, error) {
	var raw []byte
	switch h := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(h) == "" {
			return nil, nil
		}
		raw = []byte(h)
	case []interface{}:
		var err error
		if raw, err = json.Marshal(h); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	default:
		return nil, fmt.Errorf("history must be a JSON array of messages")
	}

	var history []nlu.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("history must be a JSON array of messages: %w", err)
	}
	for i, m := range history {
		if m.Role != nlu.RoleUser && m.Role != nlu.RoleAssistant {
			return nil, fmt.Errorf("history[%d].role must be %q or %q", i, nlu.RoleUser, nlu.RoleAssistant)
		}
	}
	return history, nil
}
