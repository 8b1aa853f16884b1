package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionRequestFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
	}{
		{
			name:    "missing clientId",
			args:    map[string]interface{}{"agentId": "agent-1"},
			wantErr: true,
		},
		{
			name:    "empty clientId",
			args:    map[string]interface{}{"clientId": ""},
			wantErr: true,
		},
		{
			name:    "clientId of wrong type",
			args:    map[string]interface{}{"clientId": 42},
			wantErr: true,
		},
		{
			name: "all identifiers",
			args: map[string]interface{}{
				"clientId":     "client-1",
				"agentId":      "agent-1",
				"pipelineId":   "pipe-1",
				"connectionId": "conn-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := SelectionRequestFromArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "client-1", req.ClientID)
			assert.Equal(t, "agent-1", req.AgentID)
			assert.Equal(t, "pipe-1", req.PipelineID)
			assert.Equal(t, "conn-1", req.ExplicitConnectionID)
		})
	}
}

func TestTimeArg(t *testing.T) {
	args := map[string]interface{}{
		"startTime": "2025-01-15T14:00:00Z",
		"bad":       "not-a-time",
	}

	got, err := TimeArg(args, "startTime")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC), got)

	_, err = TimeArg(args, "missing")
	require.ErrorContains(t, err, "missing is required")

	_, err = TimeArg(args, "bad")
	require.ErrorContains(t, err, "invalid bad format")
}

func TestOptionalTimeArg(t *testing.T) {
	got, err := OptionalTimeArg(map[string]interface{}{}, "startTime")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = OptionalTimeArg(map[string]interface{}{"startTime": "nope"}, "startTime")
	require.Error(t, err)
}
