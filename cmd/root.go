package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the booking-mcp application
var rootCmd = &cobra.Command{
	Use:   "booking-mcp",
	Short: "Calendar availability and booking engine served over MCP",
	Long: `booking-mcp exposes conflict checking, slot search, and event booking
against Google Calendar and Microsoft 365 calendars as MCP tools.

Calendar selection is resolved per request: an explicit connection,
the pipeline's bound calendar, the agent's calendar, or the client
default, in that order.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "booking-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
