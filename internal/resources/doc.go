// Package resources provides MCP resources for exposing booking data.
// Resources are read-only data sources that MCP clients can fetch:
//
//   - calmate://bookings lists every booking
//   - calmate://bookings/{id} returns one booking
//   - calmate://status reports the calendar mode and store health
package resources
