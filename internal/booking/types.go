package booking

import (
	"strings"
	"time"
)

// ProviderKind identifies the calendar backend family a connection belongs to.
type ProviderKind string

const (
	ProviderGoogle    ProviderKind = "google"
	ProviderMicrosoft ProviderKind = "microsoft"
)

// Kinds returns the fixed set of supported provider kinds in registration order.
func Kinds() []ProviderKind {
	return []ProviderKind{ProviderMicrosoft, ProviderGoogle}
}

// Credentials is the OAuth credential bundle stored on a connection.
// RefreshToken may be empty when the provider did not reissue one.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ExpiresWithin reports whether the access token expires within d of now.
// A zero expiry means the token does not expire.
func (c Credentials) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(d).After(c.ExpiresAt)
}

// CalendarConnection is a stored, authorized link between this system and one
// calendar mailbox on one provider.
type CalendarConnection struct {
	ID          string
	ClientID    string
	AgentID     string // empty when the connection is not owned by an agent
	Provider    ProviderKind
	Credentials Credentials
	Email       string
	DisplayName string
	IsConnected bool
}

// ValidateTokenFormat checks that the stored access token is plausible for the
// declared provider kind. Google issues opaque "ya29."-prefixed tokens while
// Microsoft Graph issues JWTs; a token carrying the other provider's shape
// means the connection record is inconsistent and must not be used.
func (c *CalendarConnection) ValidateTokenFormat() error {
	tok := c.Credentials.AccessToken
	if tok == "" {
		return nil
	}
	switch c.Provider {
	case ProviderGoogle:
		if looksLikeJWT(tok) {
			return NewError(KindProviderMismatch, "connection "+c.ID+" declares google but stores a microsoft-format token")
		}
	case ProviderMicrosoft:
		if looksLikeGoogleToken(tok) {
			return NewError(KindProviderMismatch, "connection "+c.ID+" declares microsoft but stores a google-format token")
		}
	}
	return nil
}

func looksLikeGoogleToken(tok string) bool {
	return strings.HasPrefix(tok, "ya29.")
}

func looksLikeJWT(tok string) bool {
	return strings.HasPrefix(tok, "eyJ") && strings.Count(tok, ".") == 2
}

// Attendee is a participant on a canonical event.
type Attendee struct {
	Email          string
	DisplayName    string
	ResponseStatus string // "accepted", "declined", "tentative", "needsAction"
}

// CanonicalEvent is the provider-agnostic event model. Instances are produced
// only by adapter mapping functions, never constructed ad hoc by booking logic.
type CanonicalEvent struct {
	ID          string
	Subject     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string // IANA identifier the local clock values belong to
	Attendees   []Attendee
	Organizer   string
	IsAllDay    bool
	IsCancelled bool
	MeetingURL  string
	WebLink     string
	Created     time.Time
	Updated     time.Time
}

// BusyPeriod is the cache-only projection of an event used for overlap tests.
type BusyPeriod struct {
	EventID string
	Start   time.Time
	End     time.Time
}

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two windows share any instant under half-open
// semantics: a window ending exactly when another begins does not overlap it.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// OverlapsPeriod is Overlaps against a busy period.
func (w TimeWindow) OverlapsPeriod(p BusyPeriod) bool {
	return w.Start.Before(p.End) && w.End.After(p.Start)
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// DaySchedule is the office-hours window for a single weekday.
type DaySchedule struct {
	Start   string `json:"start"` // "HH:mm"
	End     string `json:"end"`   // "HH:mm"
	Enabled bool   `json:"enabled"`
}

// OfficeHours maps lowercase weekday names ("monday"...) to day schedules.
// Times are interpreted in the owning agent's IANA timezone.
type OfficeHours map[string]DaySchedule

// ForWeekday returns the schedule for a weekday, if configured.
func (oh OfficeHours) ForWeekday(d time.Weekday) (DaySchedule, bool) {
	s, ok := oh[strings.ToLower(d.String())]
	return s, ok
}

// SlotCandidate is a generated, not-yet-confirmed time window with a
// desirability score in [0,1].
type SlotCandidate struct {
	TimeWindow
	DisplayStart string
	DisplayEnd   string
	Confidence   float64
}

// ConflictOutcome is the result of a conflict check. Kind is set to
// KindOutsideHours or KindSlotConflict when HasConflict is true.
type ConflictOutcome struct {
	HasConflict bool
	Kind        Kind
	Reason      string
	Overlapping []BusyPeriod
}

// SelectionTier names the resolver tier that produced a calendar selection.
type SelectionTier string

const (
	TierExplicit SelectionTier = "explicit"
	TierPipeline SelectionTier = "pipeline"
	TierAgent    SelectionTier = "agent"
	TierClient   SelectionTier = "client"
)

// CalendarSelection is a resolved connection together with how it was chosen.
type CalendarSelection struct {
	ConnectionID string
	Provider     ProviderKind
	Tier         SelectionTier
}

// EventSpec describes an event to create or the fields to change on update.
// Nil pointers on update mean "leave unchanged".
type EventSpec struct {
	Subject     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
	IsAllDay    bool
	WithMeeting bool // request an online meeting link from the provider
}
