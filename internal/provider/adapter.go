package provider

import (
	"context"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// CreateResult carries the created event plus any soft condition that should
// be reported to the caller without failing the operation, such as the event
// landing on the calendar while meeting-link generation failed.
type CreateResult struct {
	Event   *booking.CanonicalEvent
	Warning string
}

// Availability is the free/busy projection for one calendar over a window.
type Availability struct {
	CalendarID string
	Busy       []booking.BusyPeriod
}

// Adapter is the contract every calendar backend implements. All methods take
// the connection explicitly; adapters hold no per-connection state beyond
// what the rate-limiter registry scopes by connection id.
//
// GetEvents must return only events strictly within [window.Start, window.End)
// and must drop cancelled events at the adapter boundary so downstream logic
// never sees them.
type Adapter interface {
	// Kind returns the provider family this adapter serves.
	Kind() booking.ProviderKind

	// CanHandle is a pure predicate on the connection's declared provider.
	CanHandle(conn *booking.CalendarConnection) bool

	// GetEvents fetches events within the window, mapped to the canonical
	// model. calendarID may be empty for the connection's primary calendar.
	GetEvents(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, calendarID string) ([]booking.CanonicalEvent, error)

	// CreateEvent creates an event. Any non-success backend response is an
	// API_ERROR; partial success (event created, meeting link missing) is
	// reported through CreateResult.Warning.
	CreateEvent(ctx context.Context, conn *booking.CalendarConnection, spec booking.EventSpec) (*CreateResult, error)

	// UpdateEvent applies the non-zero fields of spec to an existing event.
	UpdateEvent(ctx context.Context, conn *booking.CalendarConnection, eventID string, spec booking.EventSpec) (*booking.CanonicalEvent, error)

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, conn *booking.CalendarConnection, eventID string) error

	// GetAvailability queries the provider's free/busy endpoint.
	GetAvailability(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, calendarIDs []string) ([]Availability, error)

	// CheckConnection probes the backend with a cheap authenticated call.
	CheckConnection(ctx context.Context, conn *booking.CalendarConnection) error

	// RefreshToken exchanges the stored refresh token for new credentials.
	// It returns nil credentials (and nil error) when the provider refused
	// the refresh in a way the caller may retry later; hard failures return
	// an error.
	RefreshToken(ctx context.Context, conn *booking.CalendarConnection) (*booking.Credentials, error)
}

// RefreshLookahead is how close to expiry a token must be before callers
// refresh it ahead of an outbound call.
const RefreshLookahead = 5 * time.Minute
