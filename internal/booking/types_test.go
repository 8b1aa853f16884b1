package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeWindowOverlaps(t *testing.T) {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	win := func(startMin, endMin int) TimeWindow {
		return TimeWindow{
			Start: base.Add(time.Duration(startMin) * time.Minute),
			End:   base.Add(time.Duration(endMin) * time.Minute),
		}
	}

	tests := []struct {
		name string
		a, b TimeWindow
		want bool
	}{
		{"identical", win(0, 30), win(0, 30), true},
		{"partial overlap", win(0, 30), win(15, 45), true},
		{"contained", win(0, 60), win(15, 30), true},
		{"adjacent boundary is not a conflict", win(0, 30), win(30, 60), false},
		{"disjoint", win(0, 30), win(60, 90), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			// Overlap is symmetric.
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestValidateTokenFormat(t *testing.T) {
	jwt := "eyJ0eXAiOiJKV1QifQ.eyJhdWQiOiJncmFwaCJ9.c2ln"
	googleTok := "ya29.a0AfB_byExampleToken"

	tests := []struct {
		name     string
		provider ProviderKind
		token    string
		wantErr  bool
	}{
		{"google token on google connection", ProviderGoogle, googleTok, false},
		{"jwt on microsoft connection", ProviderMicrosoft, jwt, false},
		{"jwt on google connection", ProviderGoogle, jwt, true},
		{"google token on microsoft connection", ProviderMicrosoft, googleTok, true},
		{"unknown shape accepted for google", ProviderGoogle, "opaque-token", false},
		{"unknown shape accepted for microsoft", ProviderMicrosoft, "opaque-token", false},
		{"empty token accepted", ProviderGoogle, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &CalendarConnection{
				ID:          "conn-1",
				Provider:    tt.provider,
				Credentials: Credentials{AccessToken: tt.token},
			}
			err := conn.ValidateTokenFormat()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindProviderMismatch, KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentialsExpiresWithin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Credentials{ExpiresAt: now.Add(2 * time.Minute)}.ExpiresWithin(now, 5*time.Minute))
	assert.False(t, Credentials{ExpiresAt: now.Add(time.Hour)}.ExpiresWithin(now, 5*time.Minute))
	// A zero expiry never triggers a refresh.
	assert.False(t, Credentials{}.ExpiresWithin(now, 5*time.Minute))
}

func TestKindOf(t *testing.T) {
	err := NewError(KindOutsideHours, "sunday is disabled")
	assert.Equal(t, KindOutsideHours, KindOf(err))

	wrapped := WrapError(KindAPIError, "create failed", assert.AnError)
	assert.Equal(t, KindAPIError, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)

	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
}

func TestOfficeHoursForWeekday(t *testing.T) {
	oh := OfficeHours{
		"monday": {Start: "09:00", End: "18:00", Enabled: true},
		"sunday": {Enabled: false},
	}

	sched, ok := oh.ForWeekday(time.Monday)
	require.True(t, ok)
	assert.True(t, sched.Enabled)
	assert.Equal(t, "09:00", sched.Start)

	sched, ok = oh.ForWeekday(time.Sunday)
	require.True(t, ok)
	assert.False(t, sched.Enabled)

	_, ok = oh.ForWeekday(time.Tuesday)
	assert.False(t, ok)
}
