package assistant_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/nlu"
	"github.com/Saijash84/CalMate/internal/server"
	"github.com/Saijash84/CalMate/internal/tools/common"
)

// maxSearchWindow bounds the free-slot walk one tool call may request.
const maxSearchWindow = 14 * 24 * time.Hour

// RegisterAvailabilityTools registers free-slot and calendar tools with the MCP server
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	findFreeSlotsTool := mcp.NewTool("schedule_find_free_slots",
		mcp.WithDescription("Find free time slots of a given length, avoiding stored bookings and busy calendar time"),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start of the search window (RFC3339, or a phrase like 'tomorrow at 9am')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End of the search window (RFC3339, or a phrase like 'tomorrow at 5pm')"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Description("Slot length in minutes (default: 30)"),
		),
		mcp.WithNumber("stepMinutes",
			mcp.Description("Distance between candidate slot starts in minutes (default: 15)"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA time zone for phrases and output (default: UTC)"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of slots to return (default: 10)"),
		),
	)

	s.AddTool(findFreeSlotsTool, common.InstrumentedToolHandler("schedule_find_free_slots", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindFreeSlots(ctx, request, sc)
		}))

	listCalendarsTool := mcp.NewTool("schedule_list_calendars",
		mcp.WithDescription("List all calendars accessible to the connected Google account"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)

	s.AddTool(listCalendarsTool, common.InstrumentedToolHandler("schedule_list_calendars", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	queryFreeBusyTool := mcp.NewTool("schedule_query_freebusy",
		mcp.WithDescription("Check availability for one or more calendars/attendees in a time range"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format, e.g., '2025-01-01T00:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format, e.g., '2025-01-31T23:59:59Z')"),
		),
		mcp.WithString("calendars",
			mcp.Description("Comma-separated list of calendar IDs or email addresses (default: the configured calendar)"),
		),
	)

	s.AddTool(queryFreeBusyTool, common.InstrumentedToolHandler("schedule_query_freebusy", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleQueryFreeBusy(ctx, request, sc)
		}))

	return nil
}

func handleFindFreeSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	tz := nlu.DefaultTimezone
	if v, ok := args["timezone"].(string); ok && v != "" {
		tz = v
	}
	loc := nlu.LoadLocation(tz)
	now := time.Now().In(loc)

	start, err := instantArg(args, "start", now, tz)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := instantArg(args, "end", now, tz)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !start.Before(end) {
		return mcp.NewToolResultError("end must be after start"), nil
	}
	if end.Sub(start) > maxSearchWindow {
		return mcp.NewToolResultError("search window must not exceed 14 days"), nil
	}

	duration, err := minutesArg(args, "durationMinutes", nlu.DefaultDurationMinutes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	step, err := minutesArg(args, "stepMinutes", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxResults := 10
	if maxResultsVal, ok := args["maxResults"].(float64); ok && maxResultsVal > 0 {
		maxResults = int(maxResultsVal)
	}

	slots, err := sc.Assistant().Engine().FindFreeSlots(ctx, start, end, duration, step)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find free slots: %v", err)), nil
	}

	if len(slots) == 0 {
		return mcp.NewToolResultText("No free time slots found for the specified criteria"), nil
	}

	total := len(slots)
	if len(slots) > maxResults {
		slots = slots[:maxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d free slot(s) of %d minutes", total, int(duration/time.Minute))
	if total > len(slots) {
		fmt.Fprintf(&b, ", showing the first %d", len(slots))
	}
	b.WriteString(":\n\n")
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s to %s (%s)\n",
			i+1,
			slot.Start.In(loc).Format("Mon, Jan 2 15:04"),
			slot.End.In(loc).Format("15:04 MST"),
			tz)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	account := common.GetAccountFromArgs(request.GetArguments())

	client, err := getCalendarClient(account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendars: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d calendar(s):\n\n", len(calendars))
	for i, cal := range calendars {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cal.Summary)
		fmt.Fprintf(&b, "   ID: %s\n", cal.ID)
		fmt.Fprintf(&b, "   Access Role: %s\n", cal.AccessRole)
		if cal.Primary {
			b.WriteString("   [PRIMARY]\n")
		}
		if cal.TimeZone != "" {
			fmt.Fprintf(&b, "   Time Zone: %s\n", cal.TimeZone)
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

func handleQueryFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)
	now := time.Now().UTC()

	timeMin, err := instantArg(args, "start", now, nlu.DefaultTimezone)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeMax, err := instantArg(args, "end", now, nlu.DefaultTimezone)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !timeMin.Before(timeMax) {
		return mcp.NewToolResultError("end must be after start"), nil
	}

	client, err := getCalendarClient(account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	calendars := []string{client.CalendarID()}
	if calendarsStr, ok := args["calendars"].(string); ok && strings.TrimSpace(calendarsStr) != "" {
		calendars = strings.Split(calendarsStr, ",")
		for i := range calendars {
			calendars[i] = strings.TrimSpace(calendars[i])
		}
	}

	freeBusyInfos, err := client.QueryFreeBusy(ctx, timeMin, timeMax, calendars)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to query free/busy: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Free/Busy information for %d calendar(s):\n\n", len(freeBusyInfos))
	for _, info := range freeBusyInfos {
		fmt.Fprintf(&b, "Calendar: %s\n", info.Calendar)

		if len(info.Errors) > 0 {
			fmt.Fprintf(&b, "  Errors: %s\n", strings.Join(info.Errors, ", "))
		}

		if len(info.Busy) == 0 {
			b.WriteString("  Status: FREE for entire range\n")
		} else {
			fmt.Fprintf(&b, "  Busy periods: %d\n", len(info.Busy))
			for i, busy := range info.Busy {
				fmt.Fprintf(&b, "  %d. %s to %s\n",
					i+1,
					busy.Start.Format("2006-01-02 15:04"),
					busy.End.Format("2006-01-02 15:04"))
			}
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
