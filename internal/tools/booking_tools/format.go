package booking_tools

import (
	"fmt"
	"strings"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

const busyTimeFormat = "2006-01-02 15:04"

func formatSelection(sel booking.CalendarSelection) string {
	return fmt.Sprintf("Calendar: %s (%s, selected via %s tier)",
		sel.ConnectionID, sel.Provider, sel.Tier)
}

func formatConflict(outcome *booking.ConflictOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conflict: %s\nReason: %s\n", outcome.Kind, outcome.Reason)
	if len(outcome.Overlapping) > 0 {
		fmt.Fprintf(&b, "Overlapping events:\n")
		for i, p := range outcome.Overlapping {
			fmt.Fprintf(&b, "  %d. %s to %s (event %s)\n",
				i+1,
				p.Start.Format(busyTimeFormat),
				p.End.Format(busyTimeFormat),
				p.EventID)
		}
	}
	return b.String()
}

func formatSlots(slots []booking.SlotCandidate) string {
	if len(slots) == 0 {
		return "No available time slots found for the specified criteria\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d available time slot(s):\n\n", len(slots))
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s to %s (confidence %.2f)\n",
			i+1, slot.DisplayStart, slot.DisplayEnd, slot.Confidence)
	}
	return b.String()
}

func formatAttendees(attendees []booking.Attendee) string {
	parts := make([]string, 0, len(attendees))
	for _, a := range attendees {
		if a.DisplayName != "" && a.DisplayName != a.Email {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Email, a.DisplayName))
			continue
		}
		parts = append(parts, a.Email)
	}
	return strings.Join(parts, ", ")
}

func formatEvent(ev *booking.CanonicalEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event ID: %s\nSubject: %s\n", ev.ID, ev.Subject)
	fmt.Fprintf(&b, "Start: %s\nEnd: %s\n",
		ev.Start.Format(busyTimeFormat), ev.End.Format(busyTimeFormat))
	if ev.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	}
	if len(ev.Attendees) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", formatAttendees(ev.Attendees))
	}
	if ev.MeetingURL != "" {
		fmt.Fprintf(&b, "Meeting link: %s\n", ev.MeetingURL)
	}
	if ev.WebLink != "" {
		fmt.Fprintf(&b, "Link: %s\n", ev.WebLink)
	}
	return b.String()
}
