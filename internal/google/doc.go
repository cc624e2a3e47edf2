// Package google provides OAuth2 authentication and token management for the
// Google Calendar API.
//
// Tokens are stored per account under the user cache directory. The
// TokenProvider interface lets other token sources be plugged in.
package google
