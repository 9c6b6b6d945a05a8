// Package store provides storage backends for ClarityCore.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/withinyouai/claritycore/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetSessionCounter returns the counter for a device, or nil if none exists.
func (s *SQLiteStore) GetSessionCounter(deviceID string) (*models.SessionCounter, error) {
	var c models.SessionCounter
	var lastSession sql.NullTime
	err := s.db.QueryRow(`SELECT device_id, count, last_session FROM session_counters WHERE device_id = ?`, deviceID).
		Scan(&c.DeviceID, &c.Count, &lastSession)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSessionCounter not found", "deviceID", deviceID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSessionCounter failed", "error", err, "deviceID", deviceID)
		return nil, fmt.Errorf("failed to query session counter for %s: %w", deviceID, err)
	}
	if lastSession.Valid {
		c.LastSession = lastSession.Time
	}
	slog.Debug("SQLiteStore GetSessionCounter found", "deviceID", deviceID, "count", c.Count)
	return &c, nil
}

// IncrementSessionCounter bumps the device counter and stamps the session time.
func (s *SQLiteStore) IncrementSessionCounter(deviceID string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO session_counters (device_id, count, last_session) VALUES (?, 1, ?)
		ON CONFLICT(device_id) DO UPDATE SET count = count + 1, last_session = excluded.last_session`,
		deviceID, at)
	if err != nil {
		slog.Error("SQLiteStore IncrementSessionCounter failed", "error", err, "deviceID", deviceID)
		return fmt.Errorf("failed to increment session counter for %s: %w", deviceID, err)
	}
	slog.Debug("SQLiteStore IncrementSessionCounter succeeded", "deviceID", deviceID)
	return nil
}

// SaveFlowState stores or updates flow state for a session.
func (s *SQLiteStore) SaveFlowState(state models.FlowState) error {
	var stateDataJSON string
	if len(state.StateData) > 0 {
		jsonBytes, err := json.Marshal(state.StateData)
		if err != nil {
			slog.Error("SQLiteStore SaveFlowState JSON marshal failed", "error", err, "sessionID", state.SessionID)
			return err
		}
		stateDataJSON = string(jsonBytes)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		state.SessionID, string(state.FlowType), string(state.CurrentState),
		stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("SQLiteStore SaveFlowState succeeded", "sessionID", state.SessionID, "flowType", state.FlowType, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves flow state for a session, or nil if none exists.
func (s *SQLiteStore) GetFlowState(sessionID string, flowType string) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON string

	err := s.db.QueryRow(`
		SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType).
		Scan(&state.SessionID, &state.FlowType, &state.CurrentState,
			&stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFlowState not found", "sessionID", sessionID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}

	if stateDataJSON != "" {
		state.StateData = make(map[models.DataKey]string)
		if err := json.Unmarshal([]byte(stateDataJSON), &state.StateData); err != nil {
			slog.Error("SQLiteStore GetFlowState JSON unmarshal failed", "error", err, "sessionID", sessionID)
			// Continue with empty map rather than failing
			state.StateData = make(map[models.DataKey]string)
		}
	}

	slog.Debug("SQLiteStore GetFlowState found", "sessionID", sessionID, "flowType", flowType, "state", state.CurrentState)
	return &state, nil
}

// DeleteFlowState removes flow state for a session.
func (s *SQLiteStore) DeleteFlowState(sessionID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("SQLiteStore DeleteFlowState succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// SaveReport archives a completed report for a session.
func (s *SQLiteStore) SaveReport(sessionID string, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		slog.Error("SQLiteStore SaveReport JSON marshal failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to encode report for %s: %w", sessionID, err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO reports (session_id, kind, payload, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(report.Kind), string(payload), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveReport failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to insert report for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore SaveReport succeeded", "sessionID", sessionID, "kind", report.Kind)
	return nil
}

// GetReport returns the archived report for a session, or nil if none exists.
func (s *SQLiteStore) GetReport(sessionID string) (*models.Report, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM reports WHERE session_id = ?`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetReport failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	var report models.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		slog.Error("SQLiteStore GetReport JSON unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to decode report for %s: %w", sessionID, err)
	}
	return &report, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
