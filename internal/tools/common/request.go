// Package common holds helpers shared by the booking tool handlers:
// selection-request parsing and the instrumentation wrapper.
package common

import (
	"fmt"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/resolver"
)

// SelectionRequestFromArgs builds the calendar-selection request from tool
// arguments. clientId is the only required identifier; the optional ones
// feed the higher-priority selection tiers.
func SelectionRequestFromArgs(args map[string]interface{}) (resolver.Request, error) {
	clientID, ok := args["clientId"].(string)
	if !ok || clientID == "" {
		return resolver.Request{}, fmt.Errorf("clientId is required")
	}
	return resolver.Request{
		ClientID:             clientID,
		AgentID:              StringArg(args, "agentId"),
		ExplicitConnectionID: StringArg(args, "connectionId"),
		PipelineID:           StringArg(args, "pipelineId"),
	}, nil
}

// StringArg returns the named argument as a string, empty when absent or of
// the wrong type.
func StringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

// TimeArg parses the named argument as an RFC3339 timestamp.
func TimeArg(args map[string]interface{}, name string) (time.Time, error) {
	raw, ok := args[name].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %w", name, err)
	}
	return t, nil
}

// OptionalTimeArg parses the named argument as RFC3339 when present. The
// zero time is returned when the argument is absent.
func OptionalTimeArg(args map[string]interface{}, name string) (time.Time, error) {
	raw, ok := args[name].(string)
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %w", name, err)
	}
	return t, nil
}
