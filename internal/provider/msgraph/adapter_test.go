package msgraph

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider"
)

func testConn() *booking.CalendarConnection {
	return &booking.CalendarConnection{
		ID:          "conn-ms",
		Provider:    booking.ProviderMicrosoft,
		Email:       "agent@contoso.com",
		IsConnected: true,
		Credentials: booking.Credentials{
			AccessToken:  "eyJ.header.sig",
			RefreshToken: "refresh-1",
		},
	}
}

func TestGetEventsFiltersCancelledAndParsesUTC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer eyJ.header.sig", r.Header.Get("Authorization"))
		assert.Equal(t, `outlook.timezone="UTC"`, r.Header.Get("Prefer"))
		assert.Contains(t, r.URL.RawQuery, "%24filter")

		resp := map[string]any{
			"value": []map[string]any{
				{
					"id":      "ev-1",
					"subject": "standup",
					"start":   map[string]string{"dateTime": "2025-01-15T14:00:00.0000000", "timeZone": "UTC"},
					"end":     map[string]string{"dateTime": "2025-01-15T15:00:00.0000000", "timeZone": "UTC"},
				},
				{
					"id":          "ev-2",
					"subject":     "cancelled sync",
					"isCancelled": true,
					"start":       map[string]string{"dateTime": "2025-01-15T16:00:00", "timeZone": "UTC"},
					"end":         map[string]string{"dateTime": "2025-01-15T17:00:00", "timeZone": "UTC"},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	window := booking.TimeWindow{
		Start: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	events, err := a.GetEvents(t.Context(), testConn(), window, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.True(t, events[0].Start.Equal(time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)))
	assert.True(t, events[0].End.Equal(time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC)))
}

func TestCreateEventRequestsOnlineMeeting(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "ev-new",
			"subject": got["subject"],
			"start":   map[string]string{"dateTime": "2025-01-15T14:00:00", "timeZone": "UTC"},
			"end":     map[string]string{"dateTime": "2025-01-15T15:00:00", "timeZone": "UTC"},
			"onlineMeeting": map[string]string{
				"joinUrl": "https://teams.microsoft.com/l/meetup-join/abc",
			},
		})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	result, err := a.CreateEvent(t.Context(), testConn(), booking.EventSpec{
		Subject:     "demo",
		Start:       time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC),
		Attendees:   []string{"lead@example.com"},
		WithMeeting: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-new", result.Event.ID)
	assert.Equal(t, "https://teams.microsoft.com/l/meetup-join/abc", result.Event.MeetingURL)
	assert.Empty(t, result.Warning)
	assert.Equal(t, true, got["isOnlineMeeting"])
	assert.Equal(t, "teamsForBusiness", got["onlineMeetingProvider"])
}

func TestCreateEventWarnsWhenMeetingLinkMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "ev-new",
			"start": map[string]string{"dateTime": "2025-01-15T14:00:00", "timeZone": "UTC"},
			"end":   map[string]string{"dateTime": "2025-01-15T15:00:00", "timeZone": "UTC"},
		})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	result, err := a.CreateEvent(t.Context(), testConn(), booking.EventSpec{
		Subject:     "demo",
		Start:       time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC),
		WithMeeting: true,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Warning, "no meeting link")
}

func TestRateLimitResponseYieldsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	window := booking.TimeWindow{
		Start: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	_, err := a.GetEvents(t.Context(), testConn(), window, "")
	var rle *provider.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 17*time.Second, rle.RetryAfter)
}

func TestUnauthorizedResponseYieldsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "InvalidAuthenticationToken", "message": "token expired"},
		})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	err := a.CheckConnection(t.Context(), testConn())
	var authErr *provider.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "InvalidAuthenticationToken")
}

func TestRefreshTokenExchangesAndKeepsOldRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "eyJ.new.sig",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	a := New(Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})
	creds, err := a.RefreshToken(t.Context(), testConn())
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "eyJ.new.sig", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), creds.ExpiresAt, 10*time.Second)
}

func TestRefreshTokenInvalidGrantIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	}))
	defer srv.Close()

	a := New(Config{TokenURL: srv.URL})
	_, err := a.RefreshToken(t.Context(), testConn())
	var authErr *provider.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "revoked")
}

func TestRefreshTokenWithoutRefreshTokenRefuses(t *testing.T) {
	a := New(Config{})
	conn := testConn()
	conn.Credentials.RefreshToken = ""
	creds, err := a.RefreshToken(t.Context(), conn)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestNormalizeResponse(t *testing.T) {
	assert.Equal(t, "accepted", normalizeResponse("organizer"))
	assert.Equal(t, "tentative", normalizeResponse("tentativelyAccepted"))
	assert.Equal(t, "needsAction", normalizeResponse("none"))
}

func TestGetAvailabilityKeepsBusyAndTentative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"scheduleId": "agent@contoso.com",
					"scheduleItems": []map[string]any{
						{
							"status": "busy",
							"start":  map[string]string{"dateTime": "2025-01-15T14:00:00", "timeZone": "UTC"},
							"end":    map[string]string{"dateTime": "2025-01-15T15:00:00", "timeZone": "UTC"},
						},
						{
							"status": "free",
							"start":  map[string]string{"dateTime": "2025-01-15T15:00:00", "timeZone": "UTC"},
							"end":    map[string]string{"dateTime": "2025-01-15T16:00:00", "timeZone": "UTC"},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	window := booking.TimeWindow{
		Start: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	avail, err := a.GetAvailability(t.Context(), testConn(), window, nil)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, "agent@contoso.com", avail[0].CalendarID)
	require.Len(t, avail[0].Busy, 1)
	assert.True(t, avail[0].Busy[0].Start.Equal(time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)))
}
