// Package googlecal implements the Google Calendar backend adapter.
package googlecal

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider"
)

const primaryCalendarID = "primary"

// Config holds the OAuth application credentials used for token refresh.
type Config struct {
	ClientID     string
	ClientSecret string

	// Endpoint overrides the Calendar API base URL, used by tests.
	Endpoint string
}

// Adapter talks to Google Calendar. It holds no per-connection state; a
// service is built per call from the connection's stored access token so
// that credential refresh stays under the caller's control.
type Adapter struct {
	config Config
}

// New creates a Google Calendar adapter.
func New(config Config) *Adapter {
	return &Adapter{config: config}
}

func (a *Adapter) Kind() booking.ProviderKind {
	return booking.ProviderGoogle
}

func (a *Adapter) CanHandle(conn *booking.CalendarConnection) bool {
	return conn != nil && conn.Provider == booking.ProviderGoogle
}

// service builds a Calendar service authenticated with the connection's
// current access token. A static token source is used deliberately: the
// library must not refresh behind our back, because refreshed credentials
// have to be persisted before they are used.
func (a *Adapter) service(ctx context.Context, conn *booking.CalendarConnection) (*calendar.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: conn.Credentials.AccessToken})
	opts := []option.ClientOption{option.WithTokenSource(source)}
	if a.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.config.Endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
}

func (a *Adapter) GetEvents(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, calendarID string) ([]booking.CanonicalEvent, error) {
	svc, err := a.service(ctx, conn)
	if err != nil {
		return nil, err
	}
	if calendarID == "" {
		calendarID = primaryCalendarID
	}

	events, err := svc.Events.List(calendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(err)
	}

	out := make([]booking.CanonicalEvent, 0, len(events.Items))
	for _, ev := range events.Items {
		if ev.Status == "cancelled" {
			continue
		}
		out = append(out, toCanonicalEvent(ev))
	}
	return out, nil
}

func (a *Adapter) CreateEvent(ctx context.Context, conn *booking.CalendarConnection, spec booking.EventSpec) (*provider.CreateResult, error) {
	svc, err := a.service(ctx, conn)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     spec.Subject,
		Description: spec.Description,
		Location:    spec.Location,
		Start:       toEventDateTime(spec.Start, spec.TimeZone, spec.IsAllDay),
		End:         toEventDateTime(spec.End, spec.TimeZone, spec.IsAllDay),
	}
	for _, email := range spec.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	call := svc.Events.Insert(primaryCalendarID, event).Context(ctx)
	if spec.WithMeeting {
		call = call.ConferenceDataVersion(1)
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
			},
		}
	}

	created, err := call.Do()
	if err != nil {
		return nil, classifyError(err)
	}

	canonical := toCanonicalEvent(created)
	result := &provider.CreateResult{Event: &canonical}
	if spec.WithMeeting && canonical.MeetingURL == "" {
		result.Warning = "event created but no meeting link was returned"
	}
	return result, nil
}

func (a *Adapter) UpdateEvent(ctx context.Context, conn *booking.CalendarConnection, eventID string, spec booking.EventSpec) (*booking.CanonicalEvent, error) {
	svc, err := a.service(ctx, conn)
	if err != nil {
		return nil, err
	}

	existing, err := svc.Events.Get(primaryCalendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}

	if spec.Subject != "" {
		existing.Summary = spec.Subject
	}
	if spec.Description != "" {
		existing.Description = spec.Description
	}
	if spec.Location != "" {
		existing.Location = spec.Location
	}
	if !spec.Start.IsZero() {
		existing.Start = toEventDateTime(spec.Start, spec.TimeZone, spec.IsAllDay)
	}
	if !spec.End.IsZero() {
		existing.End = toEventDateTime(spec.End, spec.TimeZone, spec.IsAllDay)
	}
	if len(spec.Attendees) > 0 {
		existing.Attendees = nil
		for _, email := range spec.Attendees {
			existing.Attendees = append(existing.Attendees, &calendar.EventAttendee{Email: email})
		}
	}

	updated, err := svc.Events.Update(primaryCalendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}
	canonical := toCanonicalEvent(updated)
	return &canonical, nil
}

func (a *Adapter) DeleteEvent(ctx context.Context, conn *booking.CalendarConnection, eventID string) error {
	svc, err := a.service(ctx, conn)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(primaryCalendarID, eventID).Context(ctx).Do(); err != nil {
		return classifyError(err)
	}
	return nil
}

func (a *Adapter) GetAvailability(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, calendarIDs []string) ([]provider.Availability, error) {
	svc, err := a.service(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{primaryCalendarID}
	}

	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}
	result, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}

	var out []provider.Availability
	for calID, cal := range result.Calendars {
		avail := provider.Availability{CalendarID: calID}
		for _, busy := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, busy.Start)
			end, err2 := time.Parse(time.RFC3339, busy.End)
			if err1 != nil || err2 != nil {
				continue
			}
			avail.Busy = append(avail.Busy, booking.BusyPeriod{Start: start, End: end})
		}
		out = append(out, avail)
	}
	return out, nil
}

func (a *Adapter) CheckConnection(ctx context.Context, conn *booking.CalendarConnection) error {
	svc, err := a.service(ctx, conn)
	if err != nil {
		return err
	}
	if _, err := svc.CalendarList.Get(primaryCalendarID).Context(ctx).Do(); err != nil {
		return classifyError(err)
	}
	return nil
}

func (a *Adapter) RefreshToken(ctx context.Context, conn *booking.CalendarConnection) (*booking.Credentials, error) {
	if conn.Credentials.RefreshToken == "" {
		// Nothing to exchange. Not a hard failure: the provider may issue a
		// refresh token on the next interactive authorization.
		return nil, nil
	}

	conf := &oauth2.Config{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
	}
	token, err := conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: conn.Credentials.RefreshToken,
	}).Token()
	if err != nil {
		if retrieveErr, ok := err.(*oauth2.RetrieveError); ok {
			if retrieveErr.ErrorCode == "invalid_grant" || retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized {
				return nil, &provider.AuthError{Reason: retrieveErr.ErrorCode}
			}
		}
		return nil, fmt.Errorf("refreshing google token: %w", err)
	}

	creds := &booking.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if creds.RefreshToken == "" {
		// Google often omits the refresh token on renewal; keep the old one.
		creds.RefreshToken = conn.Credentials.RefreshToken
	}
	return creds, nil
}

// classifyError maps Google API failures onto the adapter error contract.
func classifyError(err error) error {
	apiErr, ok := err.(*googleapi.Error)
	if !ok {
		return err
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return &provider.RateLimitError{RetryAfter: retryAfter(apiErr.Header)}
	case http.StatusUnauthorized:
		return &provider.AuthError{Reason: apiErr.Message}
	}
	return err
}

func retryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	secs, err := strconv.Atoi(header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
