// Package cmd implements the command-line interface for booking-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the booking tools
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
