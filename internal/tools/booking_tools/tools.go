// Package booking_tools exposes the booking engine over MCP: conflict
// checks, slot search, event mutation, and connection probes.
package booking_tools

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/server"
)

// RegisterBookingTools registers all booking tools with the MCP server.
func RegisterBookingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterAvailabilityTools(s, sc); err != nil {
		return fmt.Errorf("failed to register availability tools: %w", err)
	}
	if err := RegisterEventTools(s, sc); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}
	if err := RegisterConnectionTools(s, sc); err != nil {
		return fmt.Errorf("failed to register connection tools: %w", err)
	}
	return nil
}
