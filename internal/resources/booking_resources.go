package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/server"
)

const (
	bookingsURI      = "calmate://bookings"
	bookingURIPrefix = bookingsURI + "/"
	bookingTemplate  = bookingURIPrefix + "{id}"
	statusURI        = "calmate://status"
	jsonMIMEType     = "application/json"
)

// RegisterBookingResources registers the read-only booking resources.
func RegisterBookingResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	bookingsResource := mcp.NewResource(
		bookingsURI,
		"Bookings",
		mcp.WithResourceDescription("Every booking in insertion order, cancelled ones included"),
		mcp.WithMIMEType(jsonMIMEType),
	)
	s.AddResource(bookingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleBookings(ctx, request, sc)
	})

	bookingResource := mcp.NewResourceTemplate(
		bookingTemplate,
		"Booking",
		mcp.WithTemplateDescription("A single booking by id"),
		mcp.WithTemplateMIMEType(jsonMIMEType),
	)
	s.AddResourceTemplate(bookingResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleBooking(ctx, request, sc)
	})

	statusResource := mcp.NewResource(
		statusURI,
		"Assistant Status",
		mcp.WithResourceDescription("Whether a calendar provider is connected and the booking store is reachable"),
		mcp.WithMIMEType(jsonMIMEType),
	)
	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleStatus(ctx, request, sc)
	})

	return nil
}

func handleBookings(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	bookings, err := sc.Store().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return jsonContents(request.Params.URI, map[string]interface{}{
		"count":    len(bookings),
		"bookings": bookings,
	})
}

func handleBooking(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	id := strings.TrimPrefix(request.Params.URI, bookingURIPrefix)
	if id == "" || id == request.Params.URI {
		return nil, fmt.Errorf("invalid booking URI: %s", request.Params.URI)
	}

	b, err := sc.Store().Get(ctx, id)
	if errors.Is(err, booking.ErrNotFound) {
		return nil, fmt.Errorf("booking %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return jsonContents(request.Params.URI, b)
}

func handleStatus(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	store := "ok"
	if err := sc.Store().Ping(ctx); err != nil {
		store = err.Error()
	}
	calendar := "connected"
	if sc.Assistant().Simulated() {
		calendar = "simulation"
	}
	return jsonContents(request.Params.URI, map[string]interface{}{
		"calendar": calendar,
		"store":    store,
	})
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: jsonMIMEType,
			Text:     string(jsonData),
		},
	}, nil
}
