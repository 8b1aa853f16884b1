package googlecal

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// toCanonicalEvent maps a Google Calendar event onto the canonical model.
func toCanonicalEvent(event *calendar.Event) booking.CanonicalEvent {
	out := booking.CanonicalEvent{
		ID:          event.Id,
		Subject:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		IsCancelled: event.Status == "cancelled",
		WebLink:     event.HtmlLink,
	}

	if event.Start != nil {
		out.Start, out.IsAllDay = parseEventTime(event.Start)
		out.TimeZone = event.Start.TimeZone
	}
	if event.End != nil {
		out.End, _ = parseEventTime(event.End)
	}

	if event.Organizer != nil {
		out.Organizer = event.Organizer.Email
	}
	for _, att := range event.Attendees {
		out.Attendees = append(out.Attendees, booking.Attendee{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
		})
	}

	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				out.MeetingURL = ep.Uri
				break
			}
		}
	}

	if t, err := time.Parse(time.RFC3339, event.Created); err == nil {
		out.Created = t
	}
	if t, err := time.Parse(time.RFC3339, event.Updated); err == nil {
		out.Updated = t
	}
	return out
}

// parseEventTime handles both timed (DateTime) and all-day (Date) values.
func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// toEventDateTime builds the wire representation of a start or end instant.
func toEventDateTime(t time.Time, timezone string, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format("2006-01-02")}
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: timezone,
	}
}
