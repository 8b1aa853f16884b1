package msgraph

import (
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// graphDateTime is the Graph representation of an instant: a naive clock
// value plus the timezone it is expressed in. Responses arrive in UTC
// because every request sends Prefer: outlook.timezone="UTC".
type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphAttendee struct {
	Type   string `json:"type"`
	Status struct {
		Response string `json:"response"`
	} `json:"status"`
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEvent struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Start    graphDateTime `json:"start"`
	End      graphDateTime `json:"end"`
	Location struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	IsAllDay    bool `json:"isAllDay"`
	IsCancelled bool `json:"isCancelled"`
	Organizer   struct {
		EmailAddress graphEmailAddress `json:"emailAddress"`
	} `json:"organizer"`
	Attendees     []graphAttendee `json:"attendees"`
	OnlineMeeting *struct {
		JoinURL string `json:"joinUrl"`
	} `json:"onlineMeeting"`
	WebLink          string `json:"webLink"`
	CreatedDateTime  string `json:"createdDateTime"`
	LastModifiedTime string `json:"lastModifiedDateTime"`
}

// parseGraphTime interprets a Graph instant in its declared timezone,
// defaulting to UTC when the zone is absent or unknown.
func parseGraphTime(gdt graphDateTime) (time.Time, error) {
	loc := time.UTC
	if gdt.TimeZone != "" && gdt.TimeZone != "UTC" {
		if l, err := time.LoadLocation(gdt.TimeZone); err == nil {
			loc = l
		}
	}
	// Graph appends fractional seconds of varying width; cut them off.
	value := gdt.DateTime
	if len(value) > len(graphTimeFormat) {
		value = value[:len(graphTimeFormat)]
	}
	return time.ParseInLocation(graphTimeFormat, value, loc)
}

func toCanonicalEvent(ev *graphEvent) booking.CanonicalEvent {
	out := booking.CanonicalEvent{
		ID:          ev.ID,
		Subject:     ev.Subject,
		Description: ev.Body.Content,
		Location:    ev.Location.DisplayName,
		IsAllDay:    ev.IsAllDay,
		IsCancelled: ev.IsCancelled,
		Organizer:   ev.Organizer.EmailAddress.Address,
		WebLink:     ev.WebLink,
		TimeZone:    ev.Start.TimeZone,
	}

	if t, err := parseGraphTime(ev.Start); err == nil {
		out.Start = t
	}
	if t, err := parseGraphTime(ev.End); err == nil {
		out.End = t
	}

	for _, att := range ev.Attendees {
		out.Attendees = append(out.Attendees, booking.Attendee{
			Email:          att.EmailAddress.Address,
			DisplayName:    att.EmailAddress.Name,
			ResponseStatus: normalizeResponse(att.Status.Response),
		})
	}

	if ev.OnlineMeeting != nil {
		out.MeetingURL = ev.OnlineMeeting.JoinURL
	}

	if t, err := time.Parse(time.RFC3339, ev.CreatedDateTime); err == nil {
		out.Created = t
	}
	if t, err := time.Parse(time.RFC3339, ev.LastModifiedTime); err == nil {
		out.Updated = t
	}
	return out
}

// normalizeResponse maps Graph response states onto the canonical vocabulary
// shared with the Google adapter.
func normalizeResponse(response string) string {
	switch response {
	case "accepted", "organizer":
		return "accepted"
	case "declined":
		return "declined"
	case "tentativelyAccepted":
		return "tentative"
	default:
		return "needsAction"
	}
}

// toGraphDateTime renders an instant as the clock value of the declared zone
// so Graph stores the moment the caller meant.
func toGraphDateTime(t time.Time, tz string) graphDateTime {
	loc := time.UTC
	if tz != "" && tz != "UTC" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			tz = "UTC"
		}
	}
	if tz == "" {
		tz = "UTC"
	}
	return graphDateTime{DateTime: t.In(loc).Format(graphTimeFormat), TimeZone: tz}
}

func toGraphEvent(spec booking.EventSpec) map[string]any {
	out := map[string]any{
		"subject": spec.Subject,
		"body": map[string]string{
			"contentType": "HTML",
			"content":     spec.Description,
		},
		"start":    toGraphDateTime(spec.Start, spec.TimeZone),
		"end":      toGraphDateTime(spec.End, spec.TimeZone),
		"isAllDay": spec.IsAllDay,
	}

	if spec.Location != "" {
		out["location"] = map[string]string{"displayName": spec.Location}
	}
	if len(spec.Attendees) > 0 {
		attendees := make([]map[string]any, len(spec.Attendees))
		for i, email := range spec.Attendees {
			attendees[i] = map[string]any{
				"type":         "required",
				"emailAddress": graphEmailAddress{Address: email},
			}
		}
		out["attendees"] = attendees
	}
	if spec.WithMeeting {
		out["isOnlineMeeting"] = true
		out["onlineMeetingProvider"] = "teamsForBusiness"
	}
	return out
}

// toGraphPatch builds the PATCH body from the changed fields only.
func toGraphPatch(spec booking.EventSpec) map[string]any {
	out := map[string]any{}
	if spec.Subject != "" {
		out["subject"] = spec.Subject
	}
	if spec.Description != "" {
		out["body"] = map[string]string{"contentType": "HTML", "content": spec.Description}
	}
	if spec.Location != "" {
		out["location"] = map[string]string{"displayName": spec.Location}
	}
	if !spec.Start.IsZero() {
		out["start"] = toGraphDateTime(spec.Start, spec.TimeZone)
	}
	if !spec.End.IsZero() {
		out["end"] = toGraphDateTime(spec.End, spec.TimeZone)
	}
	if len(spec.Attendees) > 0 {
		attendees := make([]map[string]any, len(spec.Attendees))
		for i, email := range spec.Attendees {
			attendees[i] = map[string]any{
				"type":         "required",
				"emailAddress": graphEmailAddress{Address: email},
			}
		}
		out["attendees"] = attendees
	}
	return out
}
