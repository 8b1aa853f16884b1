package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// Store is the SQLite-backed source of connection records, calendar
// assignments, and agent schedules. It serves the resolver's read surface and
// the engine's credential writes.
type Store struct {
	db *sql.DB
}

// New creates a store over an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const connectionCols = `id, client_id, agent_id, provider, access_token, refresh_token, expires_at, email, display_name, is_connected`

func scanConnection(scanner interface{ Scan(...any) error }) (*booking.CalendarConnection, error) {
	var c booking.CalendarConnection
	var provider, expiresAt string
	var isConnected int
	err := scanner.Scan(&c.ID, &c.ClientID, &c.AgentID, &provider,
		&c.Credentials.AccessToken, &c.Credentials.RefreshToken, &expiresAt,
		&c.Email, &c.DisplayName, &isConnected)
	if err != nil {
		return nil, err
	}
	c.Provider = booking.ProviderKind(provider)
	c.IsConnected = isConnected != 0
	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at for connection %s: %w", c.ID, err)
		}
		c.Credentials.ExpiresAt = t
	}
	return &c, nil
}

// GetConnection loads a connection record by id, nil when absent.
func (s *Store) GetConnection(ctx context.Context, connectionID string) (*booking.CalendarConnection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+connectionCols+` FROM calendar_connections WHERE id = ?`, connectionID)
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

// GetAgentCalendarAssignment returns the connection id assigned to an agent,
// empty when the agent has no calendar.
func (s *Store) GetAgentCalendarAssignment(ctx context.Context, agentID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT connection_id FROM agent_calendar_assignments WHERE agent_id = ?`, agentID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get agent assignment: %w", err)
	}
	return id, nil
}

// GetPipelineCalendar returns the connection id bound to a pipeline within a
// client, empty when none is bound.
func (s *Store) GetPipelineCalendar(ctx context.Context, pipelineID, clientID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT connection_id FROM pipeline_calendars WHERE pipeline_id = ? AND client_id = ?`,
		pipelineID, clientID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pipeline calendar: %w", err)
	}
	return id, nil
}

// GetClientDefaultCalendar returns the client's default connection id.
func (s *Store) GetClientDefaultCalendar(ctx context.Context, clientID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT default_connection_id FROM clients WHERE id = ?`, clientID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get client default calendar: %w", err)
	}
	return id, nil
}

// SaveRefreshedTokens writes a refreshed credential bundle to the connection
// record. Called before the refreshed token is used, so a crash never leaves
// a used-but-unpersisted token behind.
func (s *Store) SaveRefreshedTokens(ctx context.Context, connectionID string, creds booking.Credentials) error {
	expiresAt := ""
	if !creds.ExpiresAt.IsZero() {
		expiresAt = creds.ExpiresAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE calendar_connections
		 SET access_token = ?, refresh_token = ?, expires_at = ?, is_connected = 1,
		     updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = ?`,
		creds.AccessToken, creds.RefreshToken, expiresAt, connectionID)
	if err != nil {
		return fmt.Errorf("save refreshed tokens: %w", err)
	}
	return nil
}

// MarkDisconnected flips a connection's connected flag after a hard auth
// failure.
func (s *Store) MarkDisconnected(ctx context.Context, connectionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE calendar_connections
		 SET is_connected = 0, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = ?`, connectionID)
	if err != nil {
		return fmt.Errorf("mark disconnected: %w", err)
	}
	return nil
}

// GetOfficeHours returns an agent's weekly schedule and timezone. A missing
// row yields an empty schedule, which disables the office-hours check.
func (s *Store) GetOfficeHours(ctx context.Context, agentID string) (booking.OfficeHours, string, error) {
	var tz, schedule string
	err := s.db.QueryRowContext(ctx,
		`SELECT timezone, schedule FROM office_hours WHERE agent_id = ?`, agentID).Scan(&tz, &schedule)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get office hours: %w", err)
	}

	var hours booking.OfficeHours
	if err := json.Unmarshal([]byte(schedule), &hours); err != nil {
		return nil, "", fmt.Errorf("decode office hours for agent %s: %w", agentID, err)
	}
	return hours, tz, nil
}

// GetClientTimezone returns the client's configured IANA timezone, empty when
// the client is unknown or has none set.
func (s *Store) GetClientTimezone(ctx context.Context, clientID string) (string, error) {
	var tz string
	err := s.db.QueryRowContext(ctx,
		`SELECT timezone FROM clients WHERE id = ?`, clientID).Scan(&tz)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get client timezone: %w", err)
	}
	return tz, nil
}

// UpsertClient creates or updates a client record.
func (s *Store) UpsertClient(ctx context.Context, clientID, timezone, defaultConnectionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, timezone, default_connection_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     timezone = excluded.timezone,
		     default_connection_id = excluded.default_connection_id,
		     updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		clientID, timezone, defaultConnectionID)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// UpsertConnection creates or updates a connection record.
func (s *Store) UpsertConnection(ctx context.Context, conn *booking.CalendarConnection) error {
	expiresAt := ""
	if !conn.Credentials.ExpiresAt.IsZero() {
		expiresAt = conn.Credentials.ExpiresAt.UTC().Format(time.RFC3339)
	}
	isConnected := 0
	if conn.IsConnected {
		isConnected = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_connections
		     (`+connectionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     client_id = excluded.client_id,
		     agent_id = excluded.agent_id,
		     provider = excluded.provider,
		     access_token = excluded.access_token,
		     refresh_token = excluded.refresh_token,
		     expires_at = excluded.expires_at,
		     email = excluded.email,
		     display_name = excluded.display_name,
		     is_connected = excluded.is_connected,
		     updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		conn.ID, conn.ClientID, conn.AgentID, string(conn.Provider),
		conn.Credentials.AccessToken, conn.Credentials.RefreshToken, expiresAt,
		conn.Email, conn.DisplayName, isConnected)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// AssignAgentCalendar binds an agent to a connection.
func (s *Store) AssignAgentCalendar(ctx context.Context, agentID, connectionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_calendar_assignments (agent_id, connection_id) VALUES (?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET connection_id = excluded.connection_id`,
		agentID, connectionID)
	if err != nil {
		return fmt.Errorf("assign agent calendar: %w", err)
	}
	return nil
}

// SetPipelineCalendar binds a pipeline within a client to a connection.
func (s *Store) SetPipelineCalendar(ctx context.Context, pipelineID, clientID, connectionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_calendars (pipeline_id, client_id, connection_id) VALUES (?, ?, ?)
		 ON CONFLICT(pipeline_id, client_id) DO UPDATE SET connection_id = excluded.connection_id`,
		pipelineID, clientID, connectionID)
	if err != nil {
		return fmt.Errorf("set pipeline calendar: %w", err)
	}
	return nil
}

// SetOfficeHours stores an agent's weekly schedule and timezone.
func (s *Store) SetOfficeHours(ctx context.Context, agentID, timezone string, hours booking.OfficeHours) error {
	schedule, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("encode office hours: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO office_hours (agent_id, timezone, schedule) VALUES (?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
		     timezone = excluded.timezone,
		     schedule = excluded.schedule`,
		agentID, timezone, string(schedule))
	if err != nil {
		return fmt.Errorf("set office hours: %w", err)
	}
	return nil
}
