package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/instrumentation"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/server"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/tools/booking_tools"
)

func newServeCmd() *cobra.Command {
	var (
		debugMode             bool
		transport             string
		httpAddr              string
		dbPath                string
		googleClientID        string
		googleClientSecret    string
		microsoftClientID     string
		microsoftClientSecret string
		metricsEnabled        bool
		metricsAddr           string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the booking tools:
conflict checks, slot search, event creation, update, deletion, and
connection health probes.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

OAuth Configuration:
  Token refresh uses the OAuth application credentials of each provider:
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars
    --microsoft-client-id and --microsoft-client-secret flags
    OR MICROSOFT_CLIENT_ID and MICROSOFT_CLIENT_SECRET env vars
  Without these, token refresh fails when stored tokens expire (~1 hour).

A .env file in the working directory is loaded when present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveOptions{
				Transport:             transport,
				Debug:                 debugMode,
				HTTPAddr:              httpAddr,
				DBPath:                dbPath,
				GoogleClientID:        googleClientID,
				GoogleClientSecret:    googleClientSecret,
				MicrosoftClientID:     microsoftClientID,
				MicrosoftClientSecret: microsoftClientSecret,
				MetricsEnabled:        metricsEnabled,
				MetricsAddr:           metricsAddr,
			})
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path for connections and schedules. Can also use BOOKING_DB_PATH env var. Default: booking.db")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID for automatic token refresh. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret for automatic token refresh. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&microsoftClientID, "microsoft-client-id", "", "Microsoft OAuth Client ID for automatic token refresh. Can also use MICROSOFT_CLIENT_ID env var.")
	cmd.Flags().StringVar(&microsoftClientSecret, "microsoft-client-secret", "", "Microsoft OAuth Client Secret for automatic token refresh. Can also use MICROSOFT_CLIENT_SECRET env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

type serveOptions struct {
	Transport             string
	Debug                 bool
	HTTPAddr              string
	DBPath                string
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MetricsEnabled        bool
	MetricsAddr           string
}

// applyEnv fills unset options from the environment. Flags win over env vars.
func (o *serveOptions) applyEnv() {
	if o.DBPath == "" {
		o.DBPath = os.Getenv("BOOKING_DB_PATH")
	}
	if o.GoogleClientID == "" {
		o.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if o.GoogleClientSecret == "" {
		o.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if o.MicrosoftClientID == "" {
		o.MicrosoftClientID = os.Getenv("MICROSOFT_CLIENT_ID")
	}
	if o.MicrosoftClientSecret == "" {
		o.MicrosoftClientSecret = os.Getenv("MICROSOFT_CLIENT_SECRET")
	}
	if os.Getenv("METRICS_ENABLED") == "false" {
		o.MetricsEnabled = false
	}
	if o.MetricsAddr == "" || o.MetricsAddr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			o.MetricsAddr = addr
		}
	}
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A .env file is optional; the environment wins over its contents.
	_ = godotenv.Load()
	opts.applyEnv()

	// Logs go to stderr so the stdio transport keeps stdout for the protocol.
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		DBPath:                opts.DBPath,
		GoogleClientID:        opts.GoogleClientID,
		GoogleClientSecret:    opts.GoogleClientSecret,
		MicrosoftClientID:     opts.MicrosoftClientID,
		MicrosoftClientSecret: opts.MicrosoftClientSecret,
		Logger:                logger,
		Instrumentation:       provider,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	healthChecker := server.NewHealthChecker(serverContext)

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.Transport != "stdio" && opts.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.MetricsAddr,
			InstrumentationProvider: provider,
			Health:                  healthChecker,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("metrics server listening", "addr", metricsServer.Addr())

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("booking-mcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := booking_tools.RegisterBookingTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register booking tools: %w", err)
	}

	if opts.GoogleClientID == "" && opts.MicrosoftClientID == "" {
		logger.Warn("no OAuth client credentials configured, token refresh is disabled")
	}

	healthChecker.SetReady(true)

	switch opts.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, healthChecker, opts.HTTPAddr, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, health *server.HealthChecker, addr string, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	health.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("streamable HTTP server listening", "addr", addr, "endpoint", "/mcp")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	return nil
}
