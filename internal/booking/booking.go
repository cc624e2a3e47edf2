package booking

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no booking matches an id or query.
	ErrNotFound = errors.New("booking not found")

	// ErrDuplicateStart is returned when an active booking already starts at
	// the exact same instant.
	ErrDuplicateStart = errors.New("an active booking already starts at that time")
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Booking is one persisted calendar booking. Bookings are never physically
// removed; cancelling flips Status.
type Booking struct {
	ID              string    `json:"id"`
	Seq             uint64    `json:"seq"`
	Summary         string    `json:"summary"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Timezone        string    `json:"timezone"`
	Attendees       []string  `json:"attendees,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the booking has not been cancelled.
func (b Booking) Active() bool {
	return b.Status == StatusActive
}

// Location returns the booking's timezone, falling back to UTC.
func (b Booking) Location() *time.Location {
	return loadLocation(b.Timezone)
}

// StartString returns the start instant as RFC 3339 in the booking's timezone.
// References such as "14:00" or "2024-06-10" are matched against this value.
func (b Booking) StartString() string {
	return b.Start.In(b.Location()).Format(time.RFC3339)
}

// EndString returns the end instant as RFC 3339 in the booking's timezone.
func (b Booking) EndString() string {
	return b.End.In(b.Location()).Format(time.RFC3339)
}

// Duration returns End minus Start.
func (b Booking) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Draft holds the fields of a booking about to be created.
type Draft struct {
	Summary         string
	ExternalEventID string
	Start           time.Time
	End             time.Time
	Timezone        string
	Attendees       []string
}

// Changes is an in-place edit of an existing booking. Status is never changed
// by an edit.
type Changes struct {
	Summary  string
	Start    time.Time
	End      time.Time
	Timezone string
}

// Store is the durable booking store. Implementations enforce that no two
// active bookings share a start instant, returning ErrDuplicateStart from Save
// and Update.
type Store interface {
	// Save persists a new active booking and returns its id.
	Save(ctx context.Context, d Draft) (string, error)
	// Get returns the booking with the given id.
	Get(ctx context.Context, id string) (*Booking, error)
	// List returns every booking, cancelled ones included, in insertion order.
	List(ctx context.Context) ([]Booking, error)
	// MostRecent returns the most recently created active booking.
	MostRecent(ctx context.Context) (*Booking, error)
	// Cancel marks a booking cancelled. Cancelling twice is not an error.
	Cancel(ctx context.Context, id string) error
	// Update overwrites summary, start, end and timezone.
	Update(ctx context.Context, id string, c Changes) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// ActiveOnly filters bookings down to those still active, preserving order.
func ActiveOnly(bookings []Booking) []Booking {
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Active() {
			out = append(out, b)
		}
	}
	return out
}

func loadLocation(name string) *time.Location {
	if name == "" || name == "UTC" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// startKey is the canonical form of a start instant used for uniqueness.
func startKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func normalize(b *Booking) {
	loc := b.Location()
	b.Start = b.Start.In(loc)
	b.End = b.End.In(loc)
	if b.Attendees == nil {
		b.Attendees = []string{}
	}
}
