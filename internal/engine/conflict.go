package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/cache"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/logging"
)

// EventFetcher loads the events of one connection within a window. The engine
// injects a fetcher that already handles token refresh and request pacing, so
// the detector stays free of transport concerns.
type EventFetcher func(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow) ([]booking.CanonicalEvent, error)

// Detector decides whether a proposed window is bookable: an office-hours
// check first, then an interval-overlap check against the cached busy set.
type Detector struct {
	cache   *cache.BusyCache
	fetch   EventFetcher
	metrics MetricsRecorder
	now     func() time.Time
	logger  *slog.Logger
}

// NewDetector creates a conflict detector.
func NewDetector(busyCache *cache.BusyCache, fetch EventFetcher, now func() time.Time, logger *slog.Logger) *Detector {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cache: busyCache, fetch: fetch, now: now, logger: logger}
}

// CheckConflict reports whether the window can be booked on the connection.
//
// Office-hours violations take precedence over event overlap and short-circuit
// before the calendar is touched. A failure to fetch events is treated as no
// conflict: the engine deliberately fails open on transient upstream errors,
// preferring availability over strict correctness for reads.
func (d *Detector) CheckConflict(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, officeHours booking.OfficeHours, agentTimezone string) booking.ConflictOutcome {
	loc := loadLocation(agentTimezone)

	if len(officeHours) > 0 {
		if outcome, blocked := checkOfficeHours(window.Start, officeHours, loc); blocked {
			return outcome
		}
	}

	periods, err := d.BusyPeriodsForDay(ctx, conn, window.Start, loc)
	if err != nil {
		d.logger.Warn("busy period fetch failed, treating window as free",
			logging.Connection(conn.ID), logging.Err(err))
		return booking.ConflictOutcome{HasConflict: false}
	}

	var overlapping []booking.BusyPeriod
	for _, p := range periods {
		if window.OverlapsPeriod(p) {
			overlapping = append(overlapping, p)
		}
	}
	if len(overlapping) > 0 {
		return booking.ConflictOutcome{
			HasConflict: true,
			Kind:        booking.KindSlotConflict,
			Reason:      fmt.Sprintf("requested window overlaps %d existing event(s)", len(overlapping)),
			Overlapping: overlapping,
		}
	}

	return booking.ConflictOutcome{HasConflict: false}
}

// BusyPeriodsForDay returns the busy set for the whole local day containing
// ref, via the cache. The loader fetches the entire local day so a partial
// window never poisons the entry with timezone artifacts.
func (d *Detector) BusyPeriodsForDay(ctx context.Context, conn *booking.CalendarConnection, ref time.Time, loc *time.Location) ([]booking.BusyPeriod, error) {
	dateKey := cache.DateKey(ref, loc)
	missed := false
	periods, err := d.cache.GetBusyPeriods(ctx, conn.ID, dateKey, func(ctx context.Context) ([]booking.BusyPeriod, error) {
		missed = true
		return d.loadDay(ctx, conn, ref, loc)
	})
	if d.metrics != nil {
		if missed {
			d.metrics.RecordCacheMiss(ctx)
		} else {
			d.metrics.RecordCacheHit(ctx)
		}
	}
	return periods, err
}

// FreshBusyPeriodsForDay bypasses the cache and loads the day directly from
// the provider. Used for the second overlap check right before a create
// commits, which narrows the check-then-act race without going through a
// possibly stale entry.
func (d *Detector) FreshBusyPeriodsForDay(ctx context.Context, conn *booking.CalendarConnection, ref time.Time, loc *time.Location) ([]booking.BusyPeriod, error) {
	return d.loadDay(ctx, conn, ref, loc)
}

func (d *Detector) loadDay(ctx context.Context, conn *booking.CalendarConnection, ref time.Time, loc *time.Location) ([]booking.BusyPeriod, error) {
	dayStart, dayEnd := localDayBounds(ref, loc)
	events, err := d.fetch(ctx, conn, booking.TimeWindow{Start: dayStart, End: dayEnd})
	if err != nil {
		return nil, err
	}
	periods := make([]booking.BusyPeriod, 0, len(events))
	for _, ev := range events {
		periods = append(periods, booking.BusyPeriod{EventID: ev.ID, Start: ev.Start, End: ev.End})
	}
	return periods, nil
}

// checkOfficeHours evaluates the window start against the agent's schedule in
// the agent's timezone. A weekday with no entry reads as disabled.
func checkOfficeHours(start time.Time, officeHours booking.OfficeHours, loc *time.Location) (booking.ConflictOutcome, bool) {
	local := start.In(loc)
	weekday := strings.ToLower(local.Weekday().String())

	sched, ok := officeHours.ForWeekday(local.Weekday())
	if !ok || !sched.Enabled {
		return booking.ConflictOutcome{
			HasConflict: true,
			Kind:        booking.KindOutsideHours,
			Reason:      fmt.Sprintf("%s is outside office hours (day disabled)", weekday),
		}, true
	}

	minutes := local.Hour()*60 + local.Minute()
	startMin, okStart := parseClock(sched.Start)
	endMin, okEnd := parseClock(sched.End)
	if !okStart || !okEnd {
		return booking.ConflictOutcome{
			HasConflict: true,
			Kind:        booking.KindOutsideHours,
			Reason:      fmt.Sprintf("office hours for %s are misconfigured", weekday),
		}, true
	}
	if minutes < startMin || minutes > endMin {
		return booking.ConflictOutcome{
			HasConflict: true,
			Kind:        booking.KindOutsideHours,
			Reason: fmt.Sprintf("%s %02d:%02d is outside office hours %s-%s",
				weekday, local.Hour(), local.Minute(), sched.Start, sched.End),
		}, true
	}
	return booking.ConflictOutcome{}, false
}

// parseClock parses "HH:mm" into minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// localDayBounds returns [00:00, next midnight) of ref's calendar day in loc.
// Using the next local midnight keeps the bounds correct across DST shifts.
func localDayBounds(ref time.Time, loc *time.Location) (time.Time, time.Time) {
	local := ref.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}

// loadLocation resolves an IANA identifier, defaulting to UTC when empty or
// unknown.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
