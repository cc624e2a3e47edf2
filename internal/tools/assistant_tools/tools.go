package assistant_tools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/calendar"
	"github.com/Saijash84/CalMate/internal/google"
	"github.com/Saijash84/CalMate/internal/nlu"
	"github.com/Saijash84/CalMate/internal/server"
)

// RegisterAssistantTools registers all scheduling tools with the MCP server
func RegisterAssistantTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterChatTools(s, sc); err != nil {
		return fmt.Errorf("failed to register chat tools: %w", err)
	}

	if err := RegisterBookingTools(s, sc); err != nil {
		return fmt.Errorf("failed to register booking tools: %w", err)
	}

	if err := RegisterAvailabilityTools(s, sc); err != nil {
		return fmt.Errorf("failed to register availability tools: %w", err)
	}

	return nil
}

// getCalendarClient retrieves or creates a calendar client for the specified account
func getCalendarClient(account string, sc *server.ServerContext) (*calendar.Client, error) {
	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil, errors.New(google.GetAuthenticationErrorMessage(account))
	}
	return client, nil
}

// instantArg reads a required time argument: RFC 3339 or any phrase the
// assistant understands.
func instantArg(args map[string]interface{}, name string, now time.Time, tz string) (time.Time, error) {
	raw, _ := args[name].(string)
	t, err := nlu.ParseInstant(raw, now, tz)
	if err != nil {
		if strings.TrimSpace(raw) == "" {
			return time.Time{}, fmt.Errorf("%s is required", name)
		}
		return time.Time{}, fmt.Errorf("invalid %s %q: use RFC3339 or a phrase like 'tomorrow at 9am'", name, raw)
	}
	return t, nil
}

// minutesArg reads an optional minutes argument. JSON numbers arrive as float64.
func minutesArg(args map[string]interface{}, name string, def int) (time.Duration, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return time.Duration(def) * time.Minute, nil
	}
	n, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number of minutes", name)
	}
	d, err := nlu.MinutesDuration(n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
