package assistant_tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/calendar"
	"github.com/Saijash84/CalMate/internal/google"
	"github.com/Saijash84/CalMate/internal/server"
	"github.com/Saijash84/CalMate/internal/tools/batch"
)

const syncMessage = "Book a meeting titled 'Sync' on 2024-06-10 at 10:00 for 30 minutes"

var refNow = time.Date(2024, time.June, 8, 9, 0, 0, 0, time.UTC)

func newServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := booking.OpenBadger("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a, err := assistant.New(assistant.Config{
		Store:    store,
		Sessions: assistant.NewMemorySessionStore(0, time.Hour),
		Clock:    func() time.Time { return refNow },
		Logger:   logger,
	})
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), server.ServerContextConfig{
		Assistant:     a,
		Store:         store,
		TokenProvider: google.StaticTokenProvider{},
		Logger:        logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func chat(t *testing.T, sc *server.ServerContext, args map[string]interface{}) ChatResult {
	t.Helper()
	result, err := handleChat(context.Background(), callRequest(args), sc)
	require.NoError(t, err)
	var out ChatResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	return out
}

func TestRegisterAssistantTools(t *testing.T) {
	s := mcpserver.NewMCPServer("calmate", "test", mcpserver.WithToolCapabilities(true))
	assert.NoError(t, RegisterAssistantTools(s, newServerContext(t)))
}

func TestHandleChat(t *testing.T) {
	sc := newServerContext(t)

	out := chat(t, sc, map[string]interface{}{"message": syncMessage, "session": "s1"})
	assert.Equal(t, "s1", out.Session)
	assert.Equal(t, assistant.OpWarning, out.Operation)
	assert.Equal(t, assistant.SimulationWarning, out.Details)
	require.NotNil(t, out.Booking)
	assert.Equal(t, "Sync", out.Booking.Summary)

	out = chat(t, sc, map[string]interface{}{"message": "Cancel it", "session": "s1"})
	assert.Contains(t, out.Response, "Event 'Sync' cancelled")
}

func TestHandleChat_History(t *testing.T) {
	sc := newServerContext(t)
	chat(t, sc, map[string]interface{}{"message": syncMessage})

	history := `[{"role":"user","content":"` + syncMessage + `"},` +
		`{"role":"assistant","content":"Event 'Sync' booked for 2024-06-10 10:00 (UTC)."}]`
	out := chat(t, sc, map[string]interface{}{"message": "Cancel it", "history": history})
	assert.Contains(t, out.Response, "Event 'Sync' cancelled")
}

func TestHandleChat_InvalidArguments(t *testing.T) {
	sc := newServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{name: "missing message", args: map[string]interface{}{}, want: "message is required"},
		{name: "blank message", args: map[string]interface{}{"message": "   "}, want: "message is required"},
		{name: "bad history", args: map[string]interface{}{"message": "help", "history": "not json"}, want: "history"},
		{
			name: "bad role",
			args: map[string]interface{}{"message": "help", "history": `[{"role":"system","content":"x"}]`},
			want: "role",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleChat(context.Background(), callRequest(tt.args), sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestParseHistory(t *testing.T) {
	history, err := parseHistory([]interface{}{
		map[string]interface{}{"role": "user", "content": "hi"},
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)

	history, err = parseHistory(nil)
	require.NoError(t, err)
	assert.Nil(t, history)

	_, err = parseHistory(42)
	assert.Error(t, err)
}

func TestHandleListBookings(t *testing.T) {
	sc := newServerContext(t)
	chat(t, sc, map[string]interface{}{"message": syncMessage})
	chat(t, sc, map[string]interface{}{"message": "Book 'Review' on 2024-06-11 at 14:00"})
	chat(t, sc, map[string]interface{}{"message": "Cancel my last event"})

	tests := []struct {
		status  string
		wantLen int
		wantErr bool
	}{
		{status: "", wantLen: 2},
		{status: "all", wantLen: 2},
		{status: "active", wantLen: 1},
		{status: "pending", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("status="+tt.status, func(t *testing.T) {
			result, err := handleListBookings(context.Background(), callRequest(map[string]interface{}{"status": tt.status}), sc)
			require.NoError(t, err)
			if tt.wantErr {
				assert.True(t, result.IsError)
				return
			}
			var bookings []booking.Booking
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &bookings))
			assert.Len(t, bookings, tt.wantLen)
		})
	}
}

func TestHandleCancelBookings(t *testing.T) {
	sc := newServerContext(t)
	booked := chat(t, sc, map[string]interface{}{"message": syncMessage})
	require.NotNil(t, booked.Booking)

	result, err := handleCancelBookings(context.Background(), callRequest(map[string]interface{}{
		"bookingIds": []interface{}{booked.Booking.ID, "unknown"},
	}), sc)
	require.NoError(t, err)

	var br batch.BatchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &br))
	assert.Equal(t, 2, br.Total)
	assert.Equal(t, 1, br.Successful)
	assert.Equal(t, 1, br.Failed)
	assert.Equal(t, assistant.OpWarning, br.Results[0].Operation)
	assert.Contains(t, br.Results[0].Result, "cancelled")
	assert.Equal(t, assistant.OpNotFound, br.Results[1].Operation)

	active, err := sc.Store().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, booking.ActiveOnly(active))

	result, err = handleCancelBookings(context.Background(), callRequest(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleFindFreeSlots(t *testing.T) {
	sc := newServerContext(t)
	chat(t, sc, map[string]interface{}{"message": syncMessage})

	result, err := handleFindFreeSlots(context.Background(), callRequest(map[string]interface{}{
		"start":           "2024-06-10T09:30:00Z",
		"end":             "2024-06-10T11:00:00Z",
		"durationMinutes": float64(30),
		"stepMinutes":     float64(30),
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 free slot(s) of 30 minutes")
	assert.Contains(t, text, "09:30 to 10:00")
	assert.Contains(t, text, "10:30 to 11:00")
	assert.NotContains(t, text, "10:00 to 10:30")
}

func TestHandleFindFreeSlots_MaxResults(t *testing.T) {
	sc := newServerContext(t)

	result, err := handleFindFreeSlots(context.Background(), callRequest(map[string]interface{}{
		"start":      "2024-06-10T09:00:00Z",
		"end":        "2024-06-10T17:00:00Z",
		"maxResults": float64(2),
	}), sc)
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "showing the first 2")
	assert.Equal(t, 2, strings.Count(text, " to "))
}

func TestHandleFindFreeSlots_InvalidArguments(t *testing.T) {
	sc := newServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{name: "missing start", args: map[string]interface{}{"end": "2024-06-10T11:00:00Z"}},
		{name: "unparseable end", args: map[string]interface{}{"start": "2024-06-10T09:00:00Z", "end": "someday"}},
		{name: "end before start", args: map[string]interface{}{"start": "2024-06-10T11:00:00Z", "end": "2024-06-10T09:00:00Z"}},
		{name: "window too wide", args: map[string]interface{}{"start": "2024-06-01T00:00:00Z", "end": "2024-07-01T00:00:00Z"}},
		{
			name: "fractional duration",
			args: map[string]interface{}{"start": "2024-06-10T09:00:00Z", "end": "2024-06-10T11:00:00Z", "durationMinutes": 12.5},
		},
		{
			name: "overlong duration",
			args: map[string]interface{}{"start": "2024-06-10T09:00:00Z", "end": "2024-06-10T11:00:00Z", "durationMinutes": float64(1e12)},
		},
		{
			name: "string step",
			args: map[string]interface{}{"start": "2024-06-10T09:00:00Z", "end": "2024-06-10T11:00:00Z", "stepMinutes": "15"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleFindFreeSlots(context.Background(), callRequest(tt.args), sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

// fakeCalendarAPI answers the two Calendar v3 calls the availability tools make.
func fakeCalendarAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/users/me/calendarList"):
		_ = json.NewEncoder(w).Encode(&gcal.CalendarList{Items: []*gcal.CalendarListEntry{
			{Id: "primary", Summary: "Work", TimeZone: "Europe/Berlin", Primary: true, AccessRole: "owner"},
		}})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/freeBusy"):
		_ = json.NewEncoder(w).Encode(&gcal.FreeBusyResponse{
			Calendars: map[string]gcal.FreeBusyCalendar{
				"primary": {Busy: []*gcal.TimePeriod{{Start: "2024-06-10T10:00:00Z", End: "2024-06-10T11:00:00Z"}}},
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	}
}

func withFakeCalendar(t *testing.T, sc *server.ServerContext) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fakeCalendarAPI))
	t.Cleanup(srv.Close)
	client, err := calendar.NewClientWithEndpoint(context.Background(), "default", srv.URL+"/", srv.Client())
	require.NoError(t, err)
	sc.SetCalendarClientForAccount("default", client)
}

func TestHandleListCalendars(t *testing.T) {
	sc := newServerContext(t)

	result, err := handleListCalendars(context.Background(), callRequest(nil), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "calmate auth url")

	withFakeCalendar(t, sc)
	result, err = handleListCalendars(context.Background(), callRequest(nil), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	text := resultText(t, result)
	assert.Contains(t, text, "Found 1 calendar(s)")
	assert.Contains(t, text, "[PRIMARY]")
	assert.Contains(t, text, "Europe/Berlin")
}

func TestHandleQueryFreeBusy(t *testing.T) {
	sc := newServerContext(t)
	withFakeCalendar(t, sc)

	result, err := handleQueryFreeBusy(context.Background(), callRequest(map[string]interface{}{
		"start": "2024-06-10T09:00:00Z",
		"end":   "2024-06-10T17:00:00Z",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	text := resultText(t, result)
	assert.Contains(t, text, "Calendar: primary")
	assert.Contains(t, text, "2024-06-10 10:00 to 2024-06-10 11:00")
}
