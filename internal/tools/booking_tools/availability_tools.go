package booking_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/server"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/tools/common"
)

// RegisterAvailabilityTools registers the conflict-check and slot-search
// tools with the MCP server.
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	checkConflictTool := mcp.NewTool("booking_check_conflict",
		mcp.WithDescription("Check whether a time window conflicts with existing events or falls outside the agent's office hours"),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("Client (tenant) identifier"),
		),
		mcp.WithString("agentId",
			mcp.Description("Agent whose calendar and office hours should be used"),
		),
		mcp.WithString("pipelineId",
			mcp.Description("Pipeline whose bound calendar should be used"),
		),
		mcp.WithString("connectionId",
			mcp.Description("Explicit calendar connection ID, overriding all other selection"),
		),
		mcp.WithString("startTime",
			mcp.Required(),
			mcp.Description("Window start (RFC3339 format, e.g., '2025-01-15T14:00:00Z')"),
		),
		mcp.WithString("endTime",
			mcp.Required(),
			mcp.Description("Window end (RFC3339 format, e.g., '2025-01-15T15:00:00Z')"),
		),
	)

	s.AddTool(checkConflictTool, common.InstrumentedToolHandler("booking_check_conflict", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckConflict(ctx, request, sc)
		}))

	findSlotsTool := mcp.NewTool("booking_find_slots",
		mcp.WithDescription("Find ranked alternative time slots near a requested window, respecting office hours and existing events"),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("Client (tenant) identifier"),
		),
		mcp.WithString("agentId",
			mcp.Description("Agent whose calendar and office hours should be used"),
		),
		mcp.WithString("pipelineId",
			mcp.Description("Pipeline whose bound calendar should be used"),
		),
		mcp.WithString("connectionId",
			mcp.Description("Explicit calendar connection ID, overriding all other selection"),
		),
		mcp.WithString("startTime",
			mcp.Required(),
			mcp.Description("Requested window start (RFC3339 format)"),
		),
		mcp.WithString("endTime",
			mcp.Required(),
			mcp.Description("Requested window end (RFC3339 format)"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Description("Slot duration in minutes (default: the requested window's duration)"),
		),
		mcp.WithNumber("maxSuggestions",
			mcp.Description("Maximum number of slots to return (default: 5)"),
		),
	)

	s.AddTool(findSlotsTool, common.InstrumentedToolHandler("booking_find_slots", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindSlots(ctx, request, sc)
		}))

	return nil
}

func handleCheckConflict(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := common.SelectionRequestFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	window, err := windowFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := sc.Engine().CheckConflict(ctx, req, window)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSelection(outcome.Selection) + "\n\n"
	if outcome.Conflict.HasConflict {
		result += formatConflict(outcome.Conflict)
	} else {
		result += fmt.Sprintf("The window %s to %s is FREE\n",
			window.Start.Format(busyTimeFormat), window.End.Format(busyTimeFormat))
	}
	return mcp.NewToolResultText(result), nil
}

func handleFindSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := common.SelectionRequestFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	window, err := windowFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	duration := window.Duration()
	if minutes, ok := args["durationMinutes"].(float64); ok {
		if minutes <= 0 {
			return mcp.NewToolResultError("durationMinutes must be positive"), nil
		}
		duration = time.Duration(minutes) * time.Minute
	}

	maxSuggestions := 5
	if v, ok := args["maxSuggestions"].(float64); ok && v > 0 {
		maxSuggestions = int(v)
	}

	outcome, err := sc.Engine().FindSlots(ctx, req, window, duration, maxSuggestions)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSelection(outcome.Selection) + "\n\n"
	if outcome.Conflict != nil && outcome.Conflict.HasConflict {
		result += formatConflict(outcome.Conflict) + "\n"
	}
	result += formatSlots(outcome.Alternatives)
	return mcp.NewToolResultText(result), nil
}

func windowFromArgs(args map[string]interface{}) (booking.TimeWindow, error) {
	start, err := common.TimeArg(args, "startTime")
	if err != nil {
		return booking.TimeWindow{}, err
	}
	end, err := common.TimeArg(args, "endTime")
	if err != nil {
		return booking.TimeWindow{}, err
	}
	if !end.After(start) {
		return booking.TimeWindow{}, fmt.Errorf("endTime must be after startTime")
	}
	return booking.TimeWindow{Start: start, End: end}, nil
}
