package common

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/server"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	sc, err := server.NewServerContext(t.Context(), server.Config{
		DBPath: filepath.Join(t.TempDir(), "booking.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestInstrumentedToolHandlerPassesResultThrough(t *testing.T) {
	sc := newTestServerContext(t)

	called := false
	wrapped := InstrumentedToolHandler("booking_check_conflict", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			called = true
			return mcp.NewToolResultText("ok"), nil
		})

	result, err := wrapped(t.Context(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, called)
	require.NotEmpty(t, result.Content)
}

func TestInstrumentedToolHandlerPreservesError(t *testing.T) {
	sc := newTestServerContext(t)

	wantErr := errors.New("backend unavailable")
	wrapped := InstrumentedToolHandler("booking_create_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, wantErr
		})

	_, err := wrapped(t.Context(), mcp.CallToolRequest{})
	assert.ErrorIs(t, err, wantErr)
}
