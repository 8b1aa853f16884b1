package booking_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/server"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/tools/common"
)

// RegisterConnectionTools registers the connection health probe with the
// MCP server.
func RegisterConnectionTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	checkConnectionTool := mcp.NewTool("booking_check_connection",
		mcp.WithDescription("Verify that the selected calendar connection can reach its provider, refreshing credentials if needed"),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("Client (tenant) identifier"),
		),
		mcp.WithString("agentId",
			mcp.Description("Agent whose calendar should be checked"),
		),
		mcp.WithString("pipelineId",
			mcp.Description("Pipeline whose bound calendar should be checked"),
		),
		mcp.WithString("connectionId",
			mcp.Description("Explicit calendar connection ID, overriding all other selection"),
		),
	)

	s.AddTool(checkConnectionTool, common.InstrumentedToolHandler("booking_check_connection", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckConnection(ctx, request, sc)
		}))

	return nil
}

func handleCheckConnection(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req, err := common.SelectionRequestFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := sc.Engine().CheckConnection(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSelection(outcome.Selection) + "\n\nConnection is healthy\n"), nil
}
