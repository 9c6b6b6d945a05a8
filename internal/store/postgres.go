// Package store provides storage backends for ClarityCore.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/withinyouai/claritycore/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetSessionCounter returns the counter for a device, or nil if none exists.
func (s *PostgresStore) GetSessionCounter(deviceID string) (*models.SessionCounter, error) {
	var c models.SessionCounter
	var lastSession sql.NullTime
	err := s.db.QueryRow(`SELECT device_id, count, last_session FROM session_counters WHERE device_id = $1`, deviceID).
		Scan(&c.DeviceID, &c.Count, &lastSession)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSessionCounter not found", "deviceID", deviceID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSessionCounter failed", "error", err, "deviceID", deviceID)
		return nil, fmt.Errorf("failed to query session counter for %s: %w", deviceID, err)
	}
	if lastSession.Valid {
		c.LastSession = lastSession.Time
	}
	return &c, nil
}

// IncrementSessionCounter bumps the device counter and stamps the session time.
func (s *PostgresStore) IncrementSessionCounter(deviceID string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO session_counters (device_id, count, last_session) VALUES ($1, 1, $2)
		ON CONFLICT (device_id) DO UPDATE SET count = session_counters.count + 1, last_session = EXCLUDED.last_session`,
		deviceID, at)
	if err != nil {
		slog.Error("PostgresStore IncrementSessionCounter failed", "error", err, "deviceID", deviceID)
		return fmt.Errorf("failed to increment session counter for %s: %w", deviceID, err)
	}
	slog.Debug("PostgresStore IncrementSessionCounter succeeded", "deviceID", deviceID)
	return nil
}

// SaveFlowState stores or updates flow state for a session.
func (s *PostgresStore) SaveFlowState(state models.FlowState) error {
	var stateDataJSON string
	if len(state.StateData) > 0 {
		jsonBytes, err := json.Marshal(state.StateData)
		if err != nil {
			slog.Error("PostgresStore SaveFlowState JSON marshal failed", "error", err, "sessionID", state.SessionID)
			return err
		}
		stateDataJSON = string(jsonBytes)
	}

	_, err := s.db.Exec(`
		INSERT INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, flow_type) DO UPDATE SET
			current_state = EXCLUDED.current_state,
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at`,
		state.SessionID, string(state.FlowType), string(state.CurrentState),
		stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("PostgresStore SaveFlowState succeeded", "sessionID", state.SessionID, "flowType", state.FlowType, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves flow state for a session, or nil if none exists.
func (s *PostgresStore) GetFlowState(sessionID string, flowType string) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON sql.NullString

	err := s.db.QueryRow(`
		SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType).
		Scan(&state.SessionID, &state.FlowType, &state.CurrentState,
			&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetFlowState not found", "sessionID", sessionID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}

	if stateDataJSON.Valid && stateDataJSON.String != "" {
		state.StateData = make(map[models.DataKey]string)
		if err := json.Unmarshal([]byte(stateDataJSON.String), &state.StateData); err != nil {
			slog.Error("PostgresStore GetFlowState JSON unmarshal failed", "error", err, "sessionID", sessionID)
			state.StateData = make(map[models.DataKey]string)
		}
	}

	return &state, nil
}

// DeleteFlowState removes flow state for a session.
func (s *PostgresStore) DeleteFlowState(sessionID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType)
	if err != nil {
		slog.Error("PostgresStore DeleteFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("PostgresStore DeleteFlowState succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// SaveReport archives a completed report for a session.
func (s *PostgresStore) SaveReport(sessionID string, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		slog.Error("PostgresStore SaveReport JSON marshal failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to encode report for %s: %w", sessionID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO reports (session_id, kind, payload, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET kind = EXCLUDED.kind, payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		sessionID, string(report.Kind), string(payload), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveReport failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to insert report for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore SaveReport succeeded", "sessionID", sessionID, "kind", report.Kind)
	return nil
}

// GetReport returns the archived report for a session, or nil if none exists.
func (s *PostgresStore) GetReport(sessionID string) (*models.Report, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM reports WHERE session_id = $1`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetReport failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	var report models.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		slog.Error("PostgresStore GetReport JSON unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to decode report for %s: %w", sessionID, err)
	}
	return &report, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
