package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func sampleConnection() *booking.CalendarConnection {
	return &booking.CalendarConnection{
		ID:          "conn-1",
		ClientID:    "client-1",
		AgentID:     "ag-1",
		Provider:    booking.ProviderGoogle,
		Email:       "agent@example.com",
		DisplayName: "Primary",
		IsConnected: true,
		Credentials: booking.Credentials{
			AccessToken:  "ya29.token",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertConnection(ctx, sampleConnection()))

	got, err := s.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, booking.ProviderGoogle, got.Provider)
	assert.Equal(t, "ya29.token", got.Credentials.AccessToken)
	assert.True(t, got.Credentials.ExpiresAt.Equal(time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)))
	assert.True(t, got.IsConnected)

	missing, err := s.GetConnection(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveRefreshedTokensAndMarkDisconnected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertConnection(ctx, sampleConnection()))

	newExpiry := time.Date(2025, 1, 21, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRefreshedTokens(ctx, "conn-1", booking.Credentials{
		AccessToken:  "ya29.refreshed",
		RefreshToken: "refresh-2",
		ExpiresAt:    newExpiry,
	}))

	got, err := s.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.refreshed", got.Credentials.AccessToken)
	assert.Equal(t, "refresh-2", got.Credentials.RefreshToken)
	assert.True(t, got.Credentials.ExpiresAt.Equal(newExpiry))

	require.NoError(t, s.MarkDisconnected(ctx, "conn-1"))
	got, err = s.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.False(t, got.IsConnected)
}

func TestAssignmentLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AssignAgentCalendar(ctx, "ag-1", "conn-1"))
	require.NoError(t, s.SetPipelineCalendar(ctx, "pipe-1", "client-1", "conn-2"))
	require.NoError(t, s.UpsertClient(ctx, "client-1", "Europe/Berlin", "conn-3"))

	id, err := s.GetAgentCalendarAssignment(ctx, "ag-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", id)

	id, err = s.GetAgentCalendarAssignment(ctx, "ag-unknown")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = s.GetPipelineCalendar(ctx, "pipe-1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-2", id)

	// The binding is scoped to the client.
	id, err = s.GetPipelineCalendar(ctx, "pipe-1", "client-2")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = s.GetClientDefaultCalendar(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-3", id)

	tz, err := s.GetClientTimezone(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", tz)

	tz, err = s.GetClientTimezone(ctx, "client-unknown")
	require.NoError(t, err)
	assert.Empty(t, tz)
}

func TestOfficeHoursRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hours := booking.OfficeHours{
		"monday": {Start: "09:00", End: "18:00", Enabled: true},
		"sunday": {Enabled: false},
	}
	require.NoError(t, s.SetOfficeHours(ctx, "ag-1", "Australia/Melbourne", hours))

	got, tz, err := s.GetOfficeHours(ctx, "ag-1")
	require.NoError(t, err)
	assert.Equal(t, "Australia/Melbourne", tz)
	assert.Equal(t, hours, got)

	got, tz, err = s.GetOfficeHours(ctx, "ag-unknown")
	require.NoError(t, err)
	assert.Empty(t, tz)
	assert.Empty(t, got)
}

func TestUpsertConnectionOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conn := sampleConnection()
	require.NoError(t, s.UpsertConnection(ctx, conn))

	conn.Provider = booking.ProviderMicrosoft
	conn.Credentials.AccessToken = "eyJ.header.sig"
	require.NoError(t, s.UpsertConnection(ctx, conn))

	got, err := s.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, booking.ProviderMicrosoft, got.Provider)
	assert.Equal(t, "eyJ.header.sig", got.Credentials.AccessToken)
}
