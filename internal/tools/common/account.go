package common

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/google"
)

// DefaultAccount is the provider account used when a request names none.
const DefaultAccount = google.DefaultAccount

// GetAccountFromArgs returns the "account" argument when it is a non-empty
// string, and DefaultAccount otherwise.
func GetAccountFromArgs(args map[string]any) string {
	if account, _ := args["account"].(string); account != "" {
		return account
	}
	return DefaultAccount
}

// GetSessionFromArgs returns the conversation session for a tool call.
//
// Priority order:
//  1. Explicit "session" argument in request
//  2. The MCP client session carried by ctx
//  3. ""
func GetSessionFromArgs(ctx context.Context, args map[string]any) string {
	if session, _ := args["session"].(string); session != "" {
		return session
	}
	if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}
