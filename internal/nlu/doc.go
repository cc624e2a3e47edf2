// Package nlu turns free-text scheduling messages into structured values.
//
// Everything here is deterministic and rule based:
//
//   - Classify maps a message to an Intent using fixed keyword tables.
//   - Extract pulls the date/time, duration, title, timezone, attendees and a
//     booking reference out of a message and flags vague requests.
//   - ResolveContext rebuilds the event under discussion from prior assistant
//     confirmations.
//
// Relative phrases ("tomorrow", "next Friday") are resolved against a caller
// supplied reference time, so results are reproducible in tests.
package nlu
