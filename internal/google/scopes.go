package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// DefaultOAuthScopes are the Google OAuth scopes the assistant requests.
//
// The scopes provide access to:
//   - Google Calendar events: create, update and delete
//   - Google Calendar (read-only): list events and query free/busy
var DefaultOAuthScopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}
