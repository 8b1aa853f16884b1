package resolver

import (
	"context"
	"fmt"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// ConnectionSource is the narrow read surface the resolver consumes. Lookups
// return ("", nil) or (nil, nil) when nothing is assigned; the backing store
// is assumed eventually consistent.
type ConnectionSource interface {
	// GetConnection loads a connection record by id, nil when absent.
	GetConnection(ctx context.Context, connectionID string) (*booking.CalendarConnection, error)

	// GetAgentCalendarAssignment returns the connection id assigned to an
	// agent, empty when the agent has no calendar.
	GetAgentCalendarAssignment(ctx context.Context, agentID string) (string, error)

	// GetPipelineCalendar returns the connection id bound to a pipeline
	// within a client, empty when none is bound.
	GetPipelineCalendar(ctx context.Context, pipelineID, clientID string) (string, error)

	// GetClientDefaultCalendar returns the client's default connection id.
	GetClientDefaultCalendar(ctx context.Context, clientID string) (string, error)
}

// Request carries the identifiers a caller supplies for calendar selection.
// Only ClientID is required.
type Request struct {
	ClientID             string
	AgentID              string
	ExplicitConnectionID string
	PipelineID           string
}

// Resolver applies the four-tier calendar-selection priority:
// explicit override, pipeline calendar, agent calendar, client default.
type Resolver struct {
	source ConnectionSource
}

// New creates a resolver over the given connection source.
func New(source ConnectionSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the usable connection for the request together with the
// tier that produced it.
//
// An explicit connection id that exists but fails the token-format check (or
// is disconnected) fails outright with that tier's error; it never falls
// through silently, because the caller asked for that calendar by name.
// Tiers reached via internal lookups treat an invalid connection as not found
// and fall through to the next tier.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*booking.CalendarConnection, booking.CalendarSelection, error) {
	var sel booking.CalendarSelection

	if req.ExplicitConnectionID != "" {
		conn, err := r.load(ctx, req.ExplicitConnectionID)
		if err != nil {
			return nil, sel, err
		}
		if conn == nil {
			return nil, sel, booking.Errorf(booking.KindCalendarNotFound,
				"explicit connection %s does not exist", req.ExplicitConnectionID)
		}
		if !conn.IsConnected {
			return nil, sel, booking.Errorf(booking.KindCalendarNotFound,
				"explicit connection %s is disconnected", req.ExplicitConnectionID)
		}
		if err := conn.ValidateTokenFormat(); err != nil {
			return nil, sel, err
		}
		return conn, selection(conn, booking.TierExplicit), nil
	}

	if req.PipelineID != "" {
		id, err := r.source.GetPipelineCalendar(ctx, req.PipelineID, req.ClientID)
		if err != nil {
			return nil, sel, fmt.Errorf("pipeline calendar lookup: %w", err)
		}
		if conn := r.usable(ctx, id); conn != nil {
			return conn, selection(conn, booking.TierPipeline), nil
		}
	}

	if req.AgentID != "" {
		id, err := r.source.GetAgentCalendarAssignment(ctx, req.AgentID)
		if err != nil {
			return nil, sel, fmt.Errorf("agent calendar lookup: %w", err)
		}
		if conn := r.usable(ctx, id); conn != nil {
			return conn, selection(conn, booking.TierAgent), nil
		}
		// An agent was named but owns no usable calendar; the client
		// default is reserved for agent-less requests.
		return nil, sel, booking.Errorf(booking.KindCalendarNotFound,
			"no usable calendar for agent %s (assign a calendar to this agent)", req.AgentID)
	}

	id, err := r.source.GetClientDefaultCalendar(ctx, req.ClientID)
	if err != nil {
		return nil, sel, fmt.Errorf("client default calendar lookup: %w", err)
	}
	if conn := r.usable(ctx, id); conn != nil {
		return conn, selection(conn, booking.TierClient), nil
	}

	return nil, sel, booking.Errorf(booking.KindCalendarNotFound,
		"no usable calendar connection for client %s at any tier", req.ClientID)
}

// load fetches a connection record, mapping store failures.
func (r *Resolver) load(ctx context.Context, id string) (*booking.CalendarConnection, error) {
	conn, err := r.source.GetConnection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("connection lookup %s: %w", id, err)
	}
	return conn, nil
}

// usable loads a connection found via an internal lookup and returns it only
// when it is connected and token-consistent; anything else reads as not found
// so resolution falls through.
func (r *Resolver) usable(ctx context.Context, id string) *booking.CalendarConnection {
	if id == "" {
		return nil
	}
	conn, err := r.source.GetConnection(ctx, id)
	if err != nil || conn == nil || !conn.IsConnected {
		return nil
	}
	if err := conn.ValidateTokenFormat(); err != nil {
		return nil
	}
	return conn
}

func selection(conn *booking.CalendarConnection, tier booking.SelectionTier) booking.CalendarSelection {
	return booking.CalendarSelection{
		ConnectionID: conn.ID,
		Provider:     conn.Provider,
		Tier:         tier,
	}
}
