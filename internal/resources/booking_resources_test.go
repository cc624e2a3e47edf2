package resources

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/server"
)

var refNow = time.Date(2024, time.June, 8, 9, 0, 0, 0, time.UTC)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := booking.OpenBadger("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a, err := assistant.New(assistant.Config{
		Store:  store,
		Clock:  func() time.Time { return refNow },
		Logger: logger,
	})
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), server.ServerContextConfig{
		Assistant: a,
		Store:     store,
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func readRequest(uri string) mcp.ReadResourceRequest {
	var req mcp.ReadResourceRequest
	req.Params.URI = uri
	return req
}

func decodeText(t *testing.T, contents []mcp.ResourceContents, v interface{}) {
	t.Helper()
	require.Len(t, contents, 1)
	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, jsonMIMEType, text.MIMEType)
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func TestRegisterBookingResources(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithResourceCapabilities(false, false))
	assert.NoError(t, RegisterBookingResources(s, newTestServerContext(t)))
}

func TestHandleBookings(t *testing.T) {
	sc := newTestServerContext(t)
	ctx := context.Background()

	contents, err := handleBookings(ctx, readRequest(bookingsURI), sc)
	require.NoError(t, err)
	var empty struct {
		Count    int               `json:"count"`
		Bookings []booking.Booking `json:"bookings"`
	}
	decodeText(t, contents, &empty)
	assert.Equal(t, 0, empty.Count)
	assert.NotNil(t, empty.Bookings)

	sc.Assistant().Handle(ctx, assistant.Request{Message: "Book a meeting titled 'Sync' on 2024-06-10 at 10:00 for 30 minutes"})

	contents, err = handleBookings(ctx, readRequest(bookingsURI), sc)
	require.NoError(t, err)
	var listed struct {
		Count    int               `json:"count"`
		Bookings []booking.Booking `json:"bookings"`
	}
	decodeText(t, contents, &listed)
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "Sync", listed.Bookings[0].Summary)

	contents, err = handleBooking(ctx, readRequest(bookingURIPrefix+listed.Bookings[0].ID), sc)
	require.NoError(t, err)
	var one booking.Booking
	decodeText(t, contents, &one)
	assert.Equal(t, listed.Bookings[0].ID, one.ID)
	assert.True(t, one.Active())
}

func TestHandleBooking_Errors(t *testing.T) {
	sc := newTestServerContext(t)
	ctx := context.Background()

	_, err := handleBooking(ctx, readRequest(bookingURIPrefix+"missing"), sc)
	assert.ErrorContains(t, err, "booking missing not found")

	_, err = handleBooking(ctx, readRequest(bookingURIPrefix), sc)
	assert.ErrorContains(t, err, "invalid booking URI")

	_, err = handleBooking(ctx, readRequest("other://x"), sc)
	assert.ErrorContains(t, err, "invalid booking URI")
}

func TestHandleStatus(t *testing.T) {
	contents, err := handleStatus(context.Background(), readRequest(statusURI), newTestServerContext(t))
	require.NoError(t, err)

	var status map[string]string
	decodeText(t, contents, &status)
	assert.Equal(t, "simulation", status["calendar"])
	assert.Equal(t, "ok", status["store"])
}
