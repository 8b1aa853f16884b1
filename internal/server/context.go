// Package server wires the booking engine, its stores, and the MCP transport
// together, and serves the operational HTTP endpoints.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/cache"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/engine"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/instrumentation"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider/googlecal"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/provider/msgraph"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/ratelimit"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/resolver"
	"github.com/arvinMleadai/booking-mcp-sub000/internal/store"
)

// Config holds the dependencies and settings for building a server context.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string

	// GoogleClientID / GoogleClientSecret are the OAuth application
	// credentials for Google token refresh.
	GoogleClientID     string
	GoogleClientSecret string

	// MicrosoftClientID / MicrosoftClientSecret are the OAuth application
	// credentials for Microsoft token refresh.
	MicrosoftClientID     string
	MicrosoftClientSecret string

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger

	// Instrumentation is optional; a nil provider disables metrics.
	Instrumentation *instrumentation.Provider
}

// ServerContext holds the long-lived state shared by every tool handler.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	db       *sql.DB
	store    *store.Store
	engine   *engine.Engine
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext opens the database and assembles the engine with both
// provider adapters registered.
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DBPath == "" {
		config.DBPath = "booking.db"
	}

	db, err := store.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	st := store.New(db)
	registry := provider.NewRegistry(
		msgraph.New(msgraph.Config{
			ClientID:     config.MicrosoftClientID,
			ClientSecret: config.MicrosoftClientSecret,
		}),
		googlecal.New(googlecal.Config{
			ClientID:     config.GoogleClientID,
			ClientSecret: config.GoogleClientSecret,
		}),
	)

	var metrics *instrumentation.Metrics
	if config.Instrumentation != nil {
		metrics = config.Instrumentation.Metrics()
	}

	engineOpts := engine.Options{
		Resolver:    resolver.New(st),
		Registry:    registry,
		Cache:       cache.NewBusyCache(),
		Limits:      ratelimit.NewRegistry(),
		Credentials: st,
		Schedules:   st,
		Now:         time.Now,
		Logger:      config.Logger,
	}
	if metrics != nil {
		engineOpts.Metrics = metrics
	}
	eng := engine.New(engineOpts)

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		db:      db,
		store:   st,
		engine:  eng,
		logger:  config.Logger,
		metrics: metrics,
	}, nil
}

// Context returns the server's lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Engine returns the booking engine.
func (sc *ServerContext) Engine() *engine.Engine {
	return sc.engine
}

// Store returns the connection store.
func (sc *ServerContext) Store() *store.Store {
	return sc.store
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// PingDB reports whether the database answers.
func (sc *ServerContext) PingDB(ctx context.Context) error {
	return sc.db.PingContext(ctx)
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and closes the database.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return sc.db.Close()
}
