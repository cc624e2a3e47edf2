package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/logging"
)

// DefaultStep is the free-slot walk increment.
const DefaultStep = 15 * time.Minute

// Busy sources.
const (
	SourceStore    = "store"
	SourceCalendar = "calendar"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect. Back-to-back
// intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Duration returns End minus Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Busy is an occupied interval with whatever is known about its occupant.
type Busy struct {
	Interval
	Summary   string `json:"summary,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Source    string `json:"source"`
}

// BusySource reports busy intervals overlapping a window. The calendar
// provider implements it.
type BusySource interface {
	BusyIntervals(ctx context.Context, start, end time.Time) ([]Busy, error)
}

// BookingLister is the read side of the booking store the engine needs.
type BookingLister interface {
	List(ctx context.Context) ([]booking.Booking, error)
}

// Engine answers conflict and free-slot queries against stored bookings and,
// when configured, an external busy source.
type Engine struct {
	bookings BookingLister
	provider BusySource
	step     time.Duration
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStep overrides the free-slot walk increment.
func WithStep(step time.Duration) Option {
	return func(e *Engine) {
		if step > 0 {
			e.step = step
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBusySource adds an external busy source. A nil source is ignored.
func WithBusySource(src BusySource) Option {
	return func(e *Engine) {
		e.provider = src
	}
}

// NewEngine creates an Engine over the given bookings.
func NewEngine(bookings BookingLister, opts ...Option) *Engine {
	e := &Engine{
		bookings: bookings,
		step:     DefaultStep,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithService(e.logger, "availability")
	return e
}

// Step returns the configured walk increment.
func (e *Engine) Step() time.Duration {
	return e.step
}

// BusyIn returns every busy interval overlapping [start, end): active stored
// bookings first, then provider intervals not already accounted for by a
// stored booking. A failing provider is logged and skipped.
func (e *Engine) BusyIn(ctx context.Context, start, end time.Time) ([]Busy, error) {
	all, err := e.bookings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	window := Interval{Start: start, End: end}

	var busy []Busy
	external := map[string]bool{}
	stored := map[Interval]bool{}
	for _, b := range all {
		if !b.Active() {
			continue
		}
		iv := Interval{Start: b.Start.UTC(), End: b.End.UTC()}
		if b.ExternalEventID != "" {
			external[b.ExternalEventID] = true
		}
		stored[iv] = true
		if window.Overlaps(iv) {
			busy = append(busy, Busy{
				Interval:  Interval{Start: b.Start, End: b.End},
				Summary:   b.Summary,
				BookingID: b.ID,
				EventID:   b.ExternalEventID,
				Source:    SourceStore,
			})
		}
	}

	if e.provider == nil {
		return busy, nil
	}
	remote, err := e.provider.BusyIntervals(ctx, start, end)
	if err != nil {
		e.logger.Warn("calendar busy lookup failed, using stored bookings only", logging.Err(err))
		return busy, nil
	}
	for _, r := range remote {
		if r.EventID != "" && external[r.EventID] {
			continue
		}
		if stored[Interval{Start: r.Start.UTC(), End: r.End.UTC()}] {
			continue
		}
		if window.Overlaps(r.Interval) {
			r.Source = SourceCalendar
			busy = append(busy, r)
		}
	}
	return busy, nil
}

// FindConflicts returns the busy intervals overlapping [start, end). When
// exclude is set, that booking and its calendar event are ignored.
func (e *Engine) FindConflicts(ctx context.Context, start, end time.Time, exclude *booking.Booking) ([]Busy, error) {
	busy, err := e.BusyIn(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if exclude == nil {
		return busy, nil
	}
	out := busy[:0]
	for _, b := range busy {
		if b.BookingID == exclude.ID {
			continue
		}
		if exclude.ExternalEventID != "" && b.EventID == exclude.ExternalEventID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// FindFreeSlots walks [windowStart, windowEnd) in step increments and returns
// every candidate [t, t+duration) that fits in the window and overlaps no busy
// interval. A non-positive step uses the engine default.
func (e *Engine) FindFreeSlots(ctx context.Context, windowStart, windowEnd time.Time, duration, step time.Duration) ([]Interval, error) {
	if step <= 0 {
		step = e.step
	}
	busy, err := e.BusyIn(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return FreeSlots(busy, windowStart, windowEnd, duration, step), nil
}

// FreeSlots is the linear free-slot walk over a known set of busy intervals.
// Results are chronological and exhaustive over the window.
func FreeSlots(busy []Busy, windowStart, windowEnd time.Time, duration, step time.Duration) []Interval {
	slots := []Interval{}
	if duration <= 0 || step <= 0 || !windowStart.Before(windowEnd) {
		return slots
	}
	sorted := make([]Interval, len(busy))
	for i, b := range busy {
		sorted[i] = b.Interval
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		candidate := Interval{Start: t, End: t.Add(duration)}
		free := true
		for _, b := range sorted {
			if !b.Start.Before(candidate.End) {
				break
			}
			if candidate.Overlaps(b) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, candidate)
		}
	}
	return slots
}
