package booking_tools

import (
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestWindowFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{
			name: "valid window",
			args: map[string]interface{}{
				"startTime": "2025-01-15T14:00:00Z",
				"endTime":   "2025-01-15T15:00:00Z",
			},
		},
		{
			name:    "missing start",
			args:    map[string]interface{}{"endTime": "2025-01-15T15:00:00Z"},
			wantErr: "startTime is required",
		},
		{
			name: "malformed end",
			args: map[string]interface{}{
				"startTime": "2025-01-15T14:00:00Z",
				"endTime":   "tomorrow",
			},
			wantErr: "invalid endTime format",
		},
		{
			name: "end not after start",
			args: map[string]interface{}{
				"startTime": "2025-01-15T15:00:00Z",
				"endTime":   "2025-01-15T15:00:00Z",
			},
			wantErr: "endTime must be after startTime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, err := windowFromArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Hour, window.Duration())
		})
	}
}

func TestHandlersRejectMissingClientID(t *testing.T) {
	request := callRequest(map[string]interface{}{
		"startTime": "2025-01-15T14:00:00Z",
		"endTime":   "2025-01-15T15:00:00Z",
	})

	handlers := map[string]func() (*mcp.CallToolResult, error){
		"check_conflict": func() (*mcp.CallToolResult, error) {
			return handleCheckConflict(t.Context(), request, nil)
		},
		"find_slots": func() (*mcp.CallToolResult, error) {
			return handleFindSlots(t.Context(), request, nil)
		},
		"create_event": func() (*mcp.CallToolResult, error) {
			return handleCreateEvent(t.Context(), request, nil)
		},
		"delete_event": func() (*mcp.CallToolResult, error) {
			return handleDeleteEvent(t.Context(), request, nil)
		},
		"check_connection": func() (*mcp.CallToolResult, error) {
			return handleCheckConnection(t.Context(), request, nil)
		},
	}

	for name, call := range handlers {
		t.Run(name, func(t *testing.T) {
			result, err := call()
			require.NoError(t, err)
			require.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), "clientId is required")
		})
	}
}

func TestHandleCreateEventValidation(t *testing.T) {
	request := callRequest(map[string]interface{}{
		"clientId":  "client-1",
		"startTime": "2025-01-15T14:00:00Z",
		"endTime":   "2025-01-15T15:00:00Z",
	})

	result, err := handleCreateEvent(t.Context(), request, nil)
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "subject is required")
}

func TestHandleDeleteEventValidatesDate(t *testing.T) {
	request := callRequest(map[string]interface{}{
		"clientId":  "client-1",
		"eventId":   "ev-1",
		"eventDate": "15/01/2025",
	})

	result, err := handleDeleteEvent(t.Context(), request, nil)
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid eventDate format")
}

func TestSplitAttendees(t *testing.T) {
	assert.Nil(t, splitAttendees(""))
	assert.Equal(t,
		[]string{"a@example.com", "b@example.com"},
		splitAttendees(" a@example.com , b@example.com,, "))
}

func TestFormatConflictListsOverlaps(t *testing.T) {
	out := formatConflict(&booking.ConflictOutcome{
		HasConflict: true,
		Kind:        booking.KindSlotConflict,
		Reason:      "window overlaps 1 existing event",
		Overlapping: []booking.BusyPeriod{{
			EventID: "ev-9",
			Start:   time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC),
		}},
	})

	assert.Contains(t, out, "SLOT_CONFLICT")
	assert.Contains(t, out, "2025-01-15 14:00 to 2025-01-15 15:00")
	assert.Contains(t, out, "ev-9")
}

func TestFormatSlots(t *testing.T) {
	assert.Contains(t, formatSlots(nil), "No available time slots")

	slots := []booking.SlotCandidate{{
		DisplayStart: "Wed, Jan 15 at 2:00 PM",
		DisplayEnd:   "Wed, Jan 15 at 3:00 PM",
		Confidence:   0.85,
	}}
	out := formatSlots(slots)
	assert.Contains(t, out, "Found 1 available time slot(s)")
	assert.Contains(t, out, "Wed, Jan 15 at 2:00 PM")
	assert.Contains(t, out, "0.85")
}

func TestFormatEventRendersAttendees(t *testing.T) {
	ev := &booking.CanonicalEvent{
		ID:      "ev-1",
		Subject: "Demo call",
		Start:   time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC),
		Attendees: []booking.Attendee{
			{Email: "ana@example.com", DisplayName: "Ana"},
			{Email: "bo@example.com"},
		},
	}
	out := formatEvent(ev)
	assert.Contains(t, out, "Attendees: ana@example.com (Ana), bo@example.com")
}
