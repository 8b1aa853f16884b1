// Package msgraph implements the Microsoft 365 calendar backend adapter on
// the Graph REST API.
package msgraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	graphTimeFormat = "2006-01-02T15:04:05"
)

// Config holds the OAuth application credentials and endpoint overrides.
type Config struct {
	ClientID     string
	ClientSecret string

	// BaseURL and TokenURL override the Graph endpoints, used by tests.
	BaseURL  string
	TokenURL string

	HTTPClient *http.Client
}

// Adapter talks to Microsoft Graph. Requests carry the connection's access
// token directly; refresh is a separate, explicit operation so new
// credentials can be persisted before use.
type Adapter struct {
	config   Config
	baseURL  string
	tokenURL string
	client   *http.Client
}

// New creates a Microsoft Graph adapter.
func New(config Config) *Adapter {
	a := &Adapter{
		config:   config,
		baseURL:  config.BaseURL,
		tokenURL: config.TokenURL,
		client:   config.HTTPClient,
	}
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	if a.tokenURL == "" {
		a.tokenURL = defaultTokenURL
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 30 * time.Second}
	}
	return a
}

func (a *Adapter) Kind() booking.ProviderKind {
	return booking.ProviderMicrosoft
}

func (a *Adapter) CanHandle(conn *booking.CalendarConnection) bool {
	return conn != nil && conn.Provider == booking.ProviderMicrosoft
}

// do issues an authenticated Graph request and checks the status code against
// wantStatus. Responses are always requested in UTC so downstream time
// handling never sees mailbox-local clock values.
func (a *Adapter) do(ctx context.Context, conn *booking.CalendarConnection, method, endpoint string, body []byte, wantStatus int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+conn.Credentials.AccessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading graph response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return nil, classifyStatus(resp, payload)
	}
	return payload, nil
}

func classifyStatus(resp *http.Response, payload []byte) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &provider.RateLimitError{RetryAfter: retryAfter(resp.Header)}
	case http.StatusUnauthorized:
		return &provider.AuthError{Reason: graphErrorMessage(payload)}
	}
	return fmt.Errorf("graph request failed with status %d: %s", resp.StatusCode, graphErrorMessage(payload))
}

func graphErrorMessage(payload []byte) string {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Error.Message == "" {
		return strings.TrimSpace(string(payload))
	}
	return body.Error.Code + ": " + body.Error.Message
}

func retryAfter(header http.Header) time.Duration {
	secs, err := strconv.Atoi(header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (a *Adapter) eventsEndpoint(calendarID string) string {
	if calendarID == "" {
		return a.baseURL + "/me/calendar/events"
	}
	return a.baseURL + "/me/calendars/" + calendarID + "/events"
}

func (a *Adapter) GetEvents(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, calendarID string) ([]booking.CanonicalEvent, error) {
	params := url.Values{}
	params.Set("$orderby", "start/dateTime")
	params.Set("$filter", fmt.Sprintf("start/dateTime lt '%s' and end/dateTime gt '%s'",
		window.End.UTC().Format(graphTimeFormat), window.Start.UTC().Format(graphTimeFormat)))

	payload, err := a.do(ctx, conn, http.MethodGet, a.eventsEndpoint(calendarID)+"?"+params.Encode(), nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}

	out := make([]booking.CanonicalEvent, 0, len(result.Value))
	for _, ev := range result.Value {
		if ev.IsCancelled {
			continue
		}
		out = append(out, toCanonicalEvent(&ev))
	}
	return out, nil
}

func (a *Adapter) CreateEvent(ctx context.Context, conn *booking.CalendarConnection, spec booking.EventSpec) (*provider.CreateResult, error) {
	body, err := json.Marshal(toGraphEvent(spec))
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}

	payload, err := a.do(ctx, conn, http.MethodPost, a.eventsEndpoint(""), body, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var created graphEvent
	if err := json.Unmarshal(payload, &created); err != nil {
		return nil, fmt.Errorf("decoding created event: %w", err)
	}

	canonical := toCanonicalEvent(&created)
	result := &provider.CreateResult{Event: &canonical}
	if spec.WithMeeting && canonical.MeetingURL == "" {
		result.Warning = "event created but no meeting link was returned"
	}
	return result, nil
}

func (a *Adapter) UpdateEvent(ctx context.Context, conn *booking.CalendarConnection, eventID string, spec booking.EventSpec) (*booking.CanonicalEvent, error) {
	body, err := json.Marshal(toGraphPatch(spec))
	if err != nil {
		return nil, fmt.Errorf("encoding event patch: %w", err)
	}

	payload, err := a.do(ctx, conn, http.MethodPatch, a.baseURL+"/me/events/"+eventID, body, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var updated graphEvent
	if err := json.Unmarshal(payload, &updated); err != nil {
		return nil, fmt.Errorf("decoding updated event: %w", err)
	}
	canonical := toCanonicalEvent(&updated)
	return &canonical, nil
}

func (a *Adapter) DeleteEvent(ctx context.Context, conn *booking.CalendarConnection, eventID string) error {
	_, err := a.do(ctx, conn, http.MethodDelete, a.baseURL+"/me/events/"+eventID, nil, http.StatusNoContent)
	return err
}

func (a *Adapter) GetAvailability(ctx context.Context, conn *booking.CalendarConnection, window booking.TimeWindow, calendarIDs []string) ([]provider.Availability, error) {
	schedules := calendarIDs
	if len(schedules) == 0 {
		schedules = []string{conn.Email}
	}

	body, err := json.Marshal(map[string]any{
		"schedules":                schedules,
		"startTime":                graphDateTime{DateTime: window.Start.UTC().Format(graphTimeFormat), TimeZone: "UTC"},
		"endTime":                  graphDateTime{DateTime: window.End.UTC().Format(graphTimeFormat), TimeZone: "UTC"},
		"availabilityViewInterval": 30,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding schedule request: %w", err)
	}

	payload, err := a.do(ctx, conn, http.MethodPost, a.baseURL+"/me/calendar/getSchedule", body, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []struct {
			ScheduleID    string `json:"scheduleId"`
			ScheduleItems []struct {
				Status string        `json:"status"`
				Start  graphDateTime `json:"start"`
				End    graphDateTime `json:"end"`
			} `json:"scheduleItems"`
		} `json:"value"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding schedule response: %w", err)
	}

	out := make([]provider.Availability, 0, len(result.Value))
	for _, schedule := range result.Value {
		avail := provider.Availability{CalendarID: schedule.ScheduleID}
		for _, item := range schedule.ScheduleItems {
			if item.Status != "busy" && item.Status != "tentative" {
				continue
			}
			start, err1 := parseGraphTime(item.Start)
			end, err2 := parseGraphTime(item.End)
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
	_, err := a.do(ctx, conn, http.MethodGet, a.baseURL+"/me/calendar", nil, http.StatusOK)
	return err
}

func (a *Adapter) RefreshToken(ctx context.Context, conn *booking.CalendarConnection) (*booking.Credentials, error) {
	if conn.Credentials.RefreshToken == "" {
		return nil, nil
	}

	form := url.Values{}
	form.Set("client_id", a.config.ClientID)
	form.Set("client_secret", a.config.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", conn.Credentials.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var tokenErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.Unmarshal(payload, &tokenErr); err == nil && tokenErr.Error == "invalid_grant" {
			return nil, &provider.AuthError{Reason: tokenErr.ErrorDescription}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &provider.RateLimitError{RetryAfter: retryAfter(resp.Header)}
		}
		return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	creds := &booking.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = conn.Credentials.RefreshToken
	}
	return creds, nil
}
