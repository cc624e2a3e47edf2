package assistant_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/server"
	"github.com/Saijash84/CalMate/internal/tools/batch"
	"github.com/Saijash84/CalMate/internal/tools/common"
)

// RegisterBookingTools registers booking tools with the MCP server
func RegisterBookingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listBookingsTool := mcp.NewTool("schedule_list_bookings",
		mcp.WithDescription("List stored bookings in the order they were made"),
		mcp.WithString("status",
			mcp.Description("Which bookings to return: 'all' (default) or 'active'"),
			mcp.Enum("all", "active"),
		),
	)

	s.AddTool(listBookingsTool, common.InstrumentedToolHandler("schedule_list_bookings", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListBookings(ctx, request, sc)
		}))

	cancelBookingsTool := mcp.NewTool("schedule_cancel_bookings",
		mcp.WithDescription("Cancel one or more bookings by id. The matching calendar events are deleted too."),
		mcp.WithString("bookingIds",
			mcp.Required(),
			mcp.Description("Booking ID (string), comma separated IDs or array of booking IDs to cancel"),
		),
		mcp.WithString("session",
			mcp.Description("Conversation id whose context should point at the cancelled booking"),
		),
	)

	s.AddTool(cancelBookingsTool, common.InstrumentedToolHandler("schedule_cancel_bookings", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCancelBookings(ctx, request, sc)
		}))

	return nil
}

func handleListBookings(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	bookings, err := sc.Store().List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list bookings: %v", err)), nil
	}

	status, _ := args["status"].(string)
	switch status {
	case "", "all":
	case string(booking.StatusActive):
		bookings = booking.ActiveOnly(bookings)
	default:
		return mcp.NewToolResultError("status must be 'all' or 'active'"), nil
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}

	result, _ := json.MarshalIndent(bookings, "", "  ")
	return mcp.NewToolResultText(string(result)), nil
}

func handleCancelBookings(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ids, err := batch.ParseStringOrArray(args["bookingIds"], "bookingIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	session := common.GetSessionFromArgs(ctx, args)

	results := batch.ProcessBatch(ctx, ids, func(ctx context.Context, id string) (batch.Outcome, error) {
		resp, err := sc.Assistant().CancelBooking(ctx, id, session)
		if err != nil {
			return batch.Outcome{Operation: assistant.OpError}, err
		}
		out := batch.Outcome{Operation: resp.Operation, Message: resp.Response}
		if resp.Operation == assistant.OpNotFound {
			return out, errors.New(resp.Response)
		}
		if resp.Details != "" {
			out.Message += " " + resp.Details
		}
		return out, nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}
