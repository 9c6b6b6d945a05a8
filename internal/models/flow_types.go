// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType represents a specific type of guided flow.
type FlowType string

// StateType represents a specific state within a flow.
type StateType string

// DataKey represents a key for storing state-specific data.
type DataKey string

// Flow type constants.
const (
	FlowTypeDiscovery FlowType = "discovery"
)

// State constants for the discovery flow.
const (
	StateNotStarted     StateType = "NOT_STARTED"
	StateInProgress     StateType = "IN_PROGRESS"     // collecting answers, step index in DataKeyStepIndex
	StateAwaitingReport StateType = "AWAITING_REPORT" // all answers in, report not yet generated
	StateComplete       StateType = "COMPLETE"
	StateBlocked        StateType = "BLOCKED" // session gate denied entry
)

// Data key constants for the discovery flow.
const (
	DataKeyStepIndex DataKey = "stepIndex" // zero-based index of the question currently awaiting an answer
	DataKeyAnswers   DataKey = "answers"   // JSON-encoded []Answer collected so far
	DataKeyPlan      DataKey = "plan"      // plan tier the session was started with
	DataKeyDeviceID  DataKey = "deviceID"  // device that owns the session counter
	DataKeyReport    DataKey = "report"    // JSON-encoded Report once generation succeeded
)
