package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/cache"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/logging"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/ratelimit"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/resolver"
)

// CredentialStore persists refreshed tokens and connection health back to the
// connection records.
type CredentialStore interface {
	SaveRefreshedTokens(ctx context.Context, connectionID string, creds booking.Credentials) error
	MarkDisconnected(ctx context.Context, connectionID string) error
}

// ScheduleSource supplies agent office hours and timezones. Either value may
// be absent; the engine then skips the office-hours check or falls back to
// the client timezone.
type ScheduleSource interface {
	GetOfficeHours(ctx context.Context, agentID string) (booking.OfficeHours, string, error)
	GetClientTimezone(ctx context.Context, clientID string) (string, error)
}

// MetricsRecorder receives operational measurements from the engine. A nil
// recorder disables recording.
type MetricsRecorder interface {
	RecordProviderOperation(ctx context.Context, provider, operation, connectionID, status string, duration time.Duration)
	RecordTokenRefresh(ctx context.Context, provider, result string)
	RecordRateLimitWait(ctx context.Context, provider string)
	RecordCacheHit(ctx context.Context)
	RecordCacheMiss(ctx context.Context)
}

// Engine is the facade over connection resolution, conflict detection, slot
// search, and event mutation. It is stateless across invocations except for
// the busy-period cache and the rate-limiter registry, both shared for the
// whole process and keyed by connection id.
type Engine struct {
	resolver    *resolver.Resolver
	registry    *provider.Registry
	cache       *cache.BusyCache
	limits      *ratelimit.Registry
	credentials CredentialStore
	schedules   ScheduleSource
	detector    *Detector
	metrics     MetricsRecorder
	now         func() time.Time
	logger      *slog.Logger
}

// Options configures engine construction.
type Options struct {
	Resolver    *resolver.Resolver
	Registry    *provider.Registry
	Cache       *cache.BusyCache
	Limits      *ratelimit.Registry
	Credentials CredentialStore
	Schedules   ScheduleSource
	Metrics     MetricsRecorder
	Now         func() time.Time
	Logger      *slog.Logger
}

// New creates an engine. Now and Logger default when nil.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		resolver:    opts.Resolver,
		registry:    opts.Registry,
		cache:       opts.Cache,
		limits:      opts.Limits,
		credentials: opts.Credentials,
		schedules:   opts.Schedules,
		metrics:     opts.Metrics,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	e.detector = NewDetector(opts.Cache, e.fetchEvents, opts.Now, opts.Logger)
	e.detector.metrics = opts.Metrics
	return e
}

// Detector exposes the conflict detector sharing the engine's cache and
// fetch path.
func (e *Engine) Detector() *Detector {
	return e.detector
}

// BookingOutcome is the discriminated result of a booking operation. Exactly
// one of Event or Conflict is populated on the success and blocked paths;
// hard failures surface through the returned error instead.
type BookingOutcome struct {
	Selection    booking.CalendarSelection
	Event        *booking.CanonicalEvent
	Warning      string
	Conflict     *booking.ConflictOutcome
	Alternatives []booking.SlotCandidate
}

// resolveConnection runs the four-tier resolver and finds the adapter.
func (e *Engine) resolveConnection(ctx context.Context, req resolver.Request) (*booking.CalendarConnection, booking.CalendarSelection, provider.Adapter, error) {
	conn, sel, err := e.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, sel, nil, err
	}
	adapter := e.registry.Resolve(conn)
	if adapter == nil {
		return nil, sel, nil, booking.Errorf(booking.KindProviderMismatch,
			"no adapter registered for provider %q on connection %s", conn.Provider, conn.ID)
	}
	return conn, sel, adapter, nil
}

// ensureFreshToken refreshes the connection's credentials when they expire
// within the lookahead, persisting the new bundle before the triggering call
// proceeds. A refused refresh leaves the connection temporarily unusable; a
// hard auth failure flips it to disconnected.
func (e *Engine) ensureFreshToken(ctx context.Context, conn *booking.CalendarConnection, adapter provider.Adapter) error {
	if !conn.IsConnected {
		return booking.Errorf(booking.KindAPIError,
			"connection %s is disconnected, reconnect before retrying", conn.ID)
	}
	if !conn.Credentials.ExpiresWithin(e.now(), provider.RefreshLookahead) {
		return nil
	}

	creds, err := adapter.RefreshToken(ctx, conn)
	if err != nil {
		e.recordRefresh(ctx, conn, "failure")
		var authErr *provider.AuthError
		if errors.As(err, &authErr) {
			if markErr := e.credentials.MarkDisconnected(ctx, conn.ID); markErr != nil {
				e.logger.Warn("failed to mark connection disconnected",
					logging.Connection(conn.ID), logging.Err(markErr))
			}
			conn.IsConnected = false
		}
		return booking.WrapError(booking.KindAPIError, "token refresh failed for connection "+conn.ID, err)
	}
	if creds == nil {
		e.recordRefresh(ctx, conn, "refused")
		return booking.Errorf(booking.KindAPIError,
			"token refresh refused for connection %s, retry on next invocation", conn.ID)
	}
	e.recordRefresh(ctx, conn, "success")

	if err := e.credentials.SaveRefreshedTokens(ctx, conn.ID, *creds); err != nil {
		return booking.WrapError(booking.KindAPIError, "persisting refreshed tokens for connection "+conn.ID, err)
	}
	conn.Credentials = *creds
	return nil
}

// fetchEvents is the paced, token-fresh read path handed to the detector.
func (e *Engine) fetchEvents(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow) ([]booking.CanonicalEvent, error) {
	adapter := e.registry.Resolve(conn)
	if adapter == nil {
		return nil, booking.Errorf(booking.KindProviderMismatch,
			"no adapter registered for provider %q", conn.Provider)
	}
	if err := e.ensureFreshToken(ctx, conn, adapter); err != nil {
		return nil, err
	}
	if err := e.limits.Wait(ctx, conn.ID); err != nil {
		return nil, err
	}

	start := e.now()
	events, err := adapter.GetEvents(ctx, conn, window, "")
	e.recordProviderOp(ctx, conn, "get_events", start, err)
	if err != nil {
		e.noteRateLimit(ctx, conn, err)
		return nil, err
	}
	return events, nil
}

// noteRateLimit installs a cooldown when the error chain carries a 429.
func (e *Engine) noteRateLimit(ctx context.Context, conn *booking.CalendarConnection, err error) {
	var rle *provider.RateLimitError
	if errors.As(err, &rle) {
		e.limits.SetCooldown(conn.ID, rle.RetryAfter)
		if e.metrics != nil {
			e.metrics.RecordRateLimitWait(ctx, string(conn.Provider))
		}
	}
}

func (e *Engine) recordRefresh(ctx context.Context, conn *booking.CalendarConnection, result string) {
	if e.metrics != nil {
		e.metrics.RecordTokenRefresh(ctx, string(conn.Provider), result)
	}
}

func (e *Engine) recordProviderOp(ctx context.Context, conn *booking.CalendarConnection, operation string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordProviderOperation(ctx, string(conn.Provider), operation, conn.ID, status, e.now().Sub(start))
}

// scheduleFor loads office hours and the effective timezone for a request.
// Missing schedule data is not an error; the conflict check simply runs
// without the office-hours gate.
func (e *Engine) scheduleFor(ctx context.Context, req resolver.Request) (booking.OfficeHours, string) {
	var hours booking.OfficeHours
	var tz string

	if req.AgentID != "" {
		h, agentTZ, err := e.schedules.GetOfficeHours(ctx, req.AgentID)
		if err != nil {
			e.logger.Warn("office hours lookup failed", slog.String("agent_id", req.AgentID), logging.Err(err))
		} else {
			hours, tz = h, agentTZ
		}
	}
	if tz == "" {
		clientTZ, err := e.schedules.GetClientTimezone(ctx, req.ClientID)
		if err != nil {
			e.logger.Warn("client timezone lookup failed", slog.String("client_id", req.ClientID), logging.Err(err))
		} else {
			tz = clientTZ
		}
	}
	return hours, tz
}

// CheckConflict resolves a connection and reports whether the window is free.
func (e *Engine) CheckConflict(ctx context.Context, req resolver.Request, window booking.TimeWindow) (*BookingOutcome, error) {
	conn, sel, _, err := e.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	hours, tz := e.scheduleFor(ctx, req)
	outcome := e.detector.CheckConflict(ctx, conn, window, hours, tz)
	return &BookingOutcome{Selection: sel, Conflict: &outcome}, nil
}

// FindSlots resolves a connection and returns ranked alternative slots for
// the requested window.
func (e *Engine) FindSlots(ctx context.Context, req resolver.Request, window booking.TimeWindow, duration time.Duration, maxSuggestions int) (*BookingOutcome, error) {
	conn, sel, _, err := e.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	hours, tz := e.scheduleFor(ctx, req)
	slots := e.detector.FindSlots(ctx, conn, window, duration, maxSuggestions, hours, tz)
	outcome := e.detector.CheckConflict(ctx, conn, window, hours, tz)
	return &BookingOutcome{Selection: sel, Conflict: &outcome, Alternatives: slots}, nil
}

// defaultSuggestions is how many alternatives accompany a blocked booking.
const defaultSuggestions = 5

// CreateEvent books an event after a conflict check. A blocked booking
// returns the conflict and ranked alternatives alongside a typed error so
// callers can report both. Immediately before committing, the busy set is
// re-read past the cache; this narrows the check-then-act race against
// concurrent writers but cannot eliminate it, since the provider offers no
// reservation primitive.
func (e *Engine) CreateEvent(ctx context.Context, req resolver.Request, spec booking.EventSpec) (*BookingOutcome, error) {
	conn, sel, adapter, err := e.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	hours, tz := e.scheduleFor(ctx, req)
	window := booking.TimeWindow{Start: spec.Start, End: spec.End}

	outcome := e.detector.CheckConflict(ctx, conn, window, hours, tz)
	if outcome.HasConflict {
		alts := e.detector.FindSlots(ctx, conn, window, window.Duration(), defaultSuggestions, hours, tz)
		return &BookingOutcome{Selection: sel, Conflict: &outcome, Alternatives: alts},
			booking.NewError(outcome.Kind, outcome.Reason)
	}

	loc := loadLocation(tz)
	if fresh, ferr := e.detector.FreshBusyPeriodsForDay(ctx, conn, spec.Start, loc); ferr == nil {
		for _, p := range fresh {
			if window.OverlapsPeriod(p) {
				e.cache.Invalidate(conn.ID, cache.DateKey(spec.Start, loc))
				conflict := booking.ConflictOutcome{
					HasConflict: true,
					Kind:        booking.KindSlotConflict,
					Reason:      "slot was taken while the booking was being prepared",
					Overlapping: []booking.BusyPeriod{p},
				}
				alts := e.detector.FindSlots(ctx, conn, window, window.Duration(), defaultSuggestions, hours, tz)
				return &BookingOutcome{Selection: sel, Conflict: &conflict, Alternatives: alts},
					booking.NewError(booking.KindSlotConflict, conflict.Reason)
			}
		}
	}

	if err := e.ensureFreshToken(ctx, conn, adapter); err != nil {
		return nil, err
	}
	if err := e.limits.Wait(ctx, conn.ID); err != nil {
		return nil, err
	}

	start := e.now()
	result, err := adapter.CreateEvent(ctx, conn, spec)
	e.recordProviderOp(ctx, conn, "create_event", start, err)
	if err != nil {
		e.noteRateLimit(ctx, conn, err)
		return nil, booking.WrapError(booking.KindAPIError, "event creation failed on connection "+conn.ID, err)
	}

	e.cache.Invalidate(conn.ID, cache.DateKey(result.Event.Start, loc))
	e.logger.Info("event created",
		logging.Connection(conn.ID),
		logging.Provider(string(conn.Provider)),
		slog.String("event_id", result.Event.ID))

	return &BookingOutcome{Selection: sel, Event: result.Event, Warning: result.Warning}, nil
}

// UpdateEvent applies spec to an existing event. The affected day's cache
// entry is cleared, and additionally the whole connection's entries, because
// an update may have moved the event across days.
func (e *Engine) UpdateEvent(ctx context.Context, req resolver.Request, eventID string, spec booking.EventSpec) (*BookingOutcome, error) {
	conn, sel, adapter, err := e.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.ensureFreshToken(ctx, conn, adapter); err != nil {
		return nil, err
	}
	if err := e.limits.Wait(ctx, conn.ID); err != nil {
		return nil, err
	}

	start := e.now()
	updated, err := adapter.UpdateEvent(ctx, conn, eventID, spec)
	e.recordProviderOp(ctx, conn, "update_event", start, err)
	if err != nil {
		e.noteRateLimit(ctx, conn, err)
		return nil, booking.WrapError(booking.KindAPIError, "event update failed on connection "+conn.ID, err)
	}

	_, tz := e.scheduleFor(ctx, req)
	loc := loadLocation(tz)
	e.cache.Invalidate(conn.ID, cache.DateKey(updated.Start, loc))
	e.cache.Invalidate(conn.ID, "")

	return &BookingOutcome{Selection: sel, Event: updated}, nil
}

// DeleteEvent removes an event. When the caller knows the event's date it is
// passed through for a narrow invalidation; otherwise every cached day for
// the connection is dropped.
func (e *Engine) DeleteEvent(ctx context.Context, req resolver.Request, eventID, eventDateKey string) (*BookingOutcome, error) {
	conn, sel, adapter, err := e.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.ensureFreshToken(ctx, conn, adapter); err != nil {
		return nil, err
	}
	if err := e.limits.Wait(ctx, conn.ID); err != nil {
		return nil, err
	}

	start := e.now()
	err = adapter.DeleteEvent(ctx, conn, eventID)
	e.recordProviderOp(ctx, conn, "delete_event", start, err)
	if err != nil {
		e.noteRateLimit(ctx, conn, err)
		return nil, booking.WrapError(booking.KindAPIError, "event deletion failed on connection "+conn.ID, err)
	}

	e.cache.Invalidate(conn.ID, eventDateKey)
	return &BookingOutcome{Selection: sel}, nil
}

// CheckConnection resolves a connection and probes the backend.
func (e *Engine) CheckConnection(ctx context.Context, req resolver.Request) (*BookingOutcome, error) {
	conn, sel, adapter, err := e.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.ensureFreshToken(ctx, conn, adapter); err != nil {
		return nil, err
	}
	if err := e.limits.Wait(ctx, conn.ID); err != nil {
		return nil, err
	}
	start := e.now()
	err = adapter.CheckConnection(ctx, conn)
	e.recordProviderOp(ctx, conn, "check_connection", start, err)
	if err != nil {
		e.noteRateLimit(ctx, conn, err)
		return nil, booking.WrapError(booking.KindAPIError, "connection check failed for "+conn.ID, err)
	}
	return &BookingOutcome{Selection: sel}, nil
}
