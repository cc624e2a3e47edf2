package assistant

import (
	"context"
	"errors"

	"github.com/Saijash84/CalMate/internal/availability"
	"github.com/Saijash84/CalMate/internal/booking"
)

// ErrProviderUnavailable is returned for provider calls made while no
// calendar provider is configured.
var ErrProviderUnavailable = errors.New("calendar provider unavailable")

// SimulationWarning is the details text of a turn whose mutation was stored
// locally but not propagated to the external calendar.
const SimulationWarning = "Calendar service is not available. Running in simulation mode."

// CalendarProvider is the external calendar the assistant mirrors bookings
// into. calendar.Client implements it.
type CalendarProvider interface {
	availability.BusySource
	CreateEvent(ctx context.Context, d booking.Draft) (string, error)
	UpdateEvent(ctx context.Context, eventID string, d booking.Draft) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// createEvent returns the provider's event id, or ErrProviderUnavailable
// when running without a provider.
func (a *Assistant) createEvent(ctx context.Context, d booking.Draft) (string, error) {
	if a.provider == nil {
		return "", ErrProviderUnavailable
	}
	return a.provider.CreateEvent(ctx, d)
}

func (a *Assistant) updateEvent(ctx context.Context, b *booking.Booking, d booking.Draft) error {
	if a.provider == nil {
		return ErrProviderUnavailable
	}
	if b.ExternalEventID == "" {
		// Booked in simulation mode; there is nothing upstream to move.
		return ErrProviderUnavailable
	}
	return a.provider.UpdateEvent(ctx, b.ExternalEventID, d)
}

func (a *Assistant) deleteEvent(ctx context.Context, eventID string) error {
	if a.provider == nil || eventID == "" {
		return ErrProviderUnavailable
	}
	return a.provider.DeleteEvent(ctx, eventID)
}
