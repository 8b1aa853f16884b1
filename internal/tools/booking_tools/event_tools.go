package booking_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/server"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/tools/common"
)

// RegisterEventTools registers the create, update, and delete tools with
// the MCP server.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createTool := mcp.NewTool("booking_create_event",
		mcp.WithDescription("Create a calendar event after checking for conflicts; a blocked booking returns the conflict and ranked alternative slots"),
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
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("startTime",
			mcp.Required(),
			mcp.Description("Event start (RFC3339 format, e.g., '2025-01-15T14:00:00Z')"),
		),
		mcp.WithString("endTime",
			mcp.Required(),
			mcp.Description("Event end (RFC3339 format)"),
		),
		mcp.WithString("description",
			mcp.Description("Event body text"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA timezone for the event (default: UTC)"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithBoolean("isAllDay",
			mcp.Description("Create an all-day event"),
		),
		mcp.WithBoolean("withMeeting",
			mcp.Description("Request an online meeting link from the provider"),
		),
	)

	s.AddTool(createTool, common.InstrumentedToolHandler("booking_create_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	updateTool := mcp.NewTool("booking_update_event",
		mcp.WithDescription("Update fields on an existing calendar event; omitted fields are left unchanged"),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("Client (tenant) identifier"),
		),
		mcp.WithString("agentId",
			mcp.Description("Agent whose calendar should be used"),
		),
		mcp.WithString("pipelineId",
			mcp.Description("Pipeline whose bound calendar should be used"),
		),
		mcp.WithString("connectionId",
			mcp.Description("Explicit calendar connection ID, overriding all other selection"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("Provider event ID to update"),
		),
		mcp.WithString("subject",
			mcp.Description("New event title"),
		),
		mcp.WithString("startTime",
			mcp.Description("New event start (RFC3339 format)"),
		),
		mcp.WithString("endTime",
			mcp.Description("New event end (RFC3339 format)"),
		),
		mcp.WithString("description",
			mcp.Description("New event body text"),
		),
		mcp.WithString("location",
			mcp.Description("New event location"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA timezone for the new times"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated replacement attendee list"),
		),
	)

	s.AddTool(updateTool, common.InstrumentedToolHandler("booking_update_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	deleteTool := mcp.NewTool("booking_delete_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("Client (tenant) identifier"),
		),
		mcp.WithString("agentId",
			mcp.Description("Agent whose calendar should be used"),
		),
		mcp.WithString("pipelineId",
			mcp.Description("Pipeline whose bound calendar should be used"),
		),
		mcp.WithString("connectionId",
			mcp.Description("Explicit calendar connection ID, overriding all other selection"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("Provider event ID to delete"),
		),
		mcp.WithString("eventDate",
			mcp.Description("Date of the event ('2006-01-02'), used to refresh availability for that day only"),
		),
	)

	s.AddTool(deleteTool, common.InstrumentedToolHandler("booking_delete_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	return nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := common.SelectionRequestFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}
	start, err := common.TimeArg(args, "startTime")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := common.TimeArg(args, "endTime")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !end.After(start) {
		return mcp.NewToolResultError("endTime must be after startTime"), nil
	}

	spec := booking.EventSpec{
		Subject:     subject,
		Description: common.StringArg(args, "description"),
		Location:    common.StringArg(args, "location"),
		Start:       start,
		End:         end,
		TimeZone:    common.StringArg(args, "timeZone"),
		Attendees:   splitAttendees(common.StringArg(args, "attendees")),
	}
	if v, ok := args["isAllDay"].(bool); ok {
		spec.IsAllDay = v
	}
	if v, ok := args["withMeeting"].(bool); ok {
		spec.WithMeeting = v
	}

	outcome, err := sc.Engine().CreateEvent(ctx, req, spec)
	if err != nil {
		if outcome != nil && outcome.Conflict != nil {
			result := formatSelection(outcome.Selection) + "\n\n"
			result += formatConflict(outcome.Conflict) + "\n"
			result += "Alternative slots:\n" + formatSlots(outcome.Alternatives)
			return mcp.NewToolResultError(result), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSelection(outcome.Selection) + "\n\nEvent created:\n" + formatEvent(outcome.Event)
	if outcome.Warning != "" {
		result += fmt.Sprintf("\nWarning: %s\n", outcome.Warning)
	}
	return mcp.NewToolResultText(result), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := common.SelectionRequestFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	start, err := common.OptionalTimeArg(args, "startTime")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := common.OptionalTimeArg(args, "endTime")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return mcp.NewToolResultError("endTime must be after startTime"), nil
	}

	spec := booking.EventSpec{
		Subject:     common.StringArg(args, "subject"),
		Description: common.StringArg(args, "description"),
		Location:    common.StringArg(args, "location"),
		Start:       start,
		End:         end,
		TimeZone:    common.StringArg(args, "timeZone"),
		Attendees:   splitAttendees(common.StringArg(args, "attendees")),
	}

	outcome, err := sc.Engine().UpdateEvent(ctx, req, eventID, spec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSelection(outcome.Selection) + "\n\nEvent updated:\n" + formatEvent(outcome.Event)
	return mcp.NewToolResultText(result), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := common.SelectionRequestFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	eventDate := common.StringArg(args, "eventDate")
	if eventDate != "" {
		if _, perr := time.Parse("2006-01-02", eventDate); perr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid eventDate format: %v", perr)), nil
		}
	}

	outcome, err := sc.Engine().DeleteEvent(ctx, req, eventID, eventDate)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSelection(outcome.Selection) + fmt.Sprintf("\n\nEvent %s deleted\n", eventID)
	return mcp.NewToolResultText(result), nil
}

func splitAttendees(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	attendees := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			attendees = append(attendees, trimmed)
		}
	}
	return attendees
}
