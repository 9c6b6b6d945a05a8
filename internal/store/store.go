// Package store provides storage backends for ClarityCore.
//
// It includes an in-memory store for tests and local runs, plus SQLite and
// PostgreSQL backed stores for session counters, flow states, and archived
// reports.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/withinyouai/claritycore/internal/models"
)

// Store defines the persistence operations required by the discovery flow.
type Store interface {
	// Session counters (per device, increment-only).
	GetSessionCounter(deviceID string) (*models.SessionCounter, error)
	IncrementSessionCounter(deviceID string, at time.Time) error

	// Flow state (per session).
	SaveFlowState(state models.FlowState) error
	GetFlowState(sessionID string, flowType string) (*models.FlowState, error)
	DeleteFlowState(sessionID, flowType string) error

	// Completed reports, archived so the dashboard can re-fetch them.
	SaveReport(sessionID string, report models.Report) error
	GetReport(sessionID string) (*models.Report, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store used by tests and as the
// default backend when no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	counters map[string]models.SessionCounter
	states   map[string]models.FlowState
	reports  map[string]string // session ID -> JSON-encoded report
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		counters: make(map[string]models.SessionCounter),
		states:   make(map[string]models.FlowState),
		reports:  make(map[string]string),
	}
}

func stateKey(sessionID, flowType string) string {
	return sessionID + "|" + flowType
}

// GetSessionCounter returns the counter for a device, or nil if none exists.
func (s *InMemoryStore) GetSessionCounter(deviceID string) (*models.SessionCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.counters[deviceID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// IncrementSessionCounter bumps the device counter and stamps the session time.
func (s *InMemoryStore) IncrementSessionCounter(deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[deviceID]
	c.DeviceID = deviceID
	c.Count++
	c.LastSession = at
	s.counters[deviceID] = c
	return nil
}

// SaveFlowState stores or replaces the flow state for a session.
func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy the state data map so callers can't mutate stored state.
	if state.StateData != nil {
		data := make(map[models.DataKey]string, len(state.StateData))
		for k, v := range state.StateData {
			data[k] = v
		}
		state.StateData = data
	}
	s.states[stateKey(state.SessionID, string(state.FlowType))] = state
	return nil
}

// GetFlowState retrieves the flow state for a session, or nil if none exists.
func (s *InMemoryStore) GetFlowState(sessionID string, flowType string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(sessionID, flowType)]
	if !ok {
		return nil, nil
	}
	if state.StateData != nil {
		data := make(map[models.DataKey]string, len(state.StateData))
		for k, v := range state.StateData {
			data[k] = v
		}
		state.StateData = data
	}
	return &state, nil
}

// DeleteFlowState removes the flow state for a session.
func (s *InMemoryStore) DeleteFlowState(sessionID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(sessionID, flowType))
	return nil
}

// SaveReport archives a completed report for a session.
func (s *InMemoryStore) SaveReport(sessionID string, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report for %s: %w", sessionID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[sessionID] = string(payload)
	return nil
}

// GetReport returns the archived report for a session, or nil if none exists.
func (s *InMemoryStore) GetReport(sessionID string) (*models.Report, error) {
	s.mu.RLock()
	payload, ok := s.reports[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var report models.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report for %s: %w", sessionID, err)
	}
	return &report, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
