package engine

import (
	"context"
	"sort"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

const (
	// slotStride is the spacing between generated candidate starts.
	slotStride = 30 * time.Minute
	// maxCandidates bounds generation cost on long search windows.
	maxCandidates = 48
	// minLeadTime is how far in the future a candidate must start.
	minLeadTime = 15 * time.Minute
	// conflictSearchPadding widens the search around the requested window
	// when it collided with an existing event.
	conflictSearchPadding = 4 * time.Hour
	// proximityWindow normalizes the distance term of the confidence score.
	proximityWindow = 4 * time.Hour
	// businessDayStart / businessDayEnd bound the canonical business hours
	// that earn candidates a scoring bonus.
	businessDayStartHour = 8
	businessDayEndHour   = 18
	businessHoursBonus   = 0.2
	// displayTimeFormat renders candidate bounds for human agents.
	displayTimeFormat = "Mon, Jan 2 at 3:04 PM"
)

// FindSlots proposes bookable alternatives around a requested window.
//
// The search window depends on why the request was blocked: an office-hours
// violation searches the entire local day, an event conflict searches the
// requested window padded by four hours each way, and a free window is
// searched as-is so the caller still gets confirmation-ready alternatives.
func (d *Detector) FindSlots(ctx context.Context, conn *booking.CalendarConnection, requested booking.TimeWindow, duration time.Duration, maxSuggestions int, officeHours booking.OfficeHours, agentTimezone string) []booking.SlotCandidate {
	if maxSuggestions <= 0 || duration <= 0 {
		return nil
	}
	loc := loadLocation(agentTimezone)

	outcome := d.CheckConflict(ctx, conn, requested, officeHours, agentTimezone)
	search := searchWindow(requested, outcome, loc)

	periods, err := d.BusyPeriodsForDay(ctx, conn, requested.Start, loc)
	if err != nil {
		// Same fail-open stance as the conflict check: an unreachable
		// provider yields candidates filtered only by the local rules.
		periods = nil
	}

	requestedDate := requested.Start.In(loc).Format("2006-01-02")
	earliest := d.now().Add(minLeadTime)

	var candidates []booking.SlotCandidate
	generated := 0
	for start := search.Start; generated < maxCandidates && !start.Add(duration).After(search.End); start = start.Add(slotStride) {
		generated++
		cand := booking.TimeWindow{Start: start, End: start.Add(duration)}

		// Candidates must stay on the requested local calendar day; the
		// date comparison is timezone-aware so slots near local midnight
		// are not misclassified by their UTC date.
		if cand.Start.In(loc).Format("2006-01-02") != requestedDate {
			continue
		}
		if cand.Start.Before(earliest) {
			continue
		}
		if overlapsAny(cand, periods) {
			continue
		}
		if len(officeHours) > 0 {
			if _, blocked := checkOfficeHours(cand.Start, officeHours, loc); blocked {
				continue
			}
		}

		candidates = append(candidates, booking.SlotCandidate{
			TimeWindow:   cand,
			DisplayStart: cand.Start.In(loc).Format(displayTimeFormat),
			DisplayEnd:   cand.End.In(loc).Format(displayTimeFormat),
			Confidence:   score(cand, requested, loc),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	return candidates
}

// searchWindow picks where to look for alternatives given the conflict class.
func searchWindow(requested booking.TimeWindow, outcome booking.ConflictOutcome, loc *time.Location) booking.TimeWindow {
	switch {
	case outcome.HasConflict && outcome.Kind == booking.KindOutsideHours:
		start, end := localDayBounds(requested.Start, loc)
		return booking.TimeWindow{Start: start, End: end}
	case outcome.HasConflict:
		return booking.TimeWindow{
			Start: requested.Start.Add(-conflictSearchPadding),
			End:   requested.End.Add(conflictSearchPadding),
		}
	default:
		return requested
	}
}

func overlapsAny(w booking.TimeWindow, periods []booking.BusyPeriod) bool {
	for _, p := range periods {
		if w.OverlapsPeriod(p) {
			return true
		}
	}
	return false
}

// score ranks a candidate by proximity to the requested start, with a bonus
// for landing inside canonical business hours. The result is clamped to 1.
func score(cand, requested booking.TimeWindow, loc *time.Location) float64 {
	distance := cand.Start.Sub(requested.Start)
	if distance < 0 {
		distance = -distance
	}
	confidence := 1 - float64(distance)/float64(proximityWindow)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if withinBusinessHours(cand, loc) {
		confidence += businessHoursBonus
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func withinBusinessHours(w booking.TimeWindow, loc *time.Location) bool {
	start := w.Start.In(loc)
	end := w.End.In(loc)
	if start.Day() != end.Day() {
		return false
	}
	if start.Hour() < businessDayStartHour {
		return false
	}
	if end.Hour() > businessDayEndHour || (end.Hour() == businessDayEndHour && end.Minute() > 0) {
		return false
	}
	return true
}
