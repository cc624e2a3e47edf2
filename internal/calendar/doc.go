// Package calendar provides the Google Calendar backed calendar provider.
//
// A Client writes booking drafts as events (CreateEvent, UpdateEvent,
// DeleteEvent) and reports busy time for availability checks
// (BusyIntervals). Every API call is traced and counted through the
// instrumentation package.
//
// Example usage:
//
//	client, err := calendar.NewClientForAccount(ctx, "default",
//		calendar.WithCalendarID("primary"),
//		calendar.WithMetrics(provider.Metrics()))
//	if err != nil {
//		return err
//	}
//	busy, err := client.BusyIntervals(ctx, time.Now(), time.Now().Add(24*time.Hour))
package calendar
