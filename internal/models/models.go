// Package models defines the core data structures for ClarityCore.
//
// It contains the question catalog types, session counter, collected answers,
// API request types with validation, and the standard JSON response envelope.
package models

import (
	"fmt"
	"strings"
	"time"
)

// PlanTier controls the session gate cap.
type PlanTier string

const (
	// PlanFree allows a capped number of discovery sessions per device.
	PlanFree PlanTier = "free"
	// PlanPremium is exempt from the session cap.
	PlanPremium PlanTier = "premium"
)

// Valid reports whether the plan tier is one of the known tiers.
func (p PlanTier) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

// QuestionKind distinguishes free-text questions from single-choice ones.
type QuestionKind string

const (
	// QuestionKindText expects a free-form text answer.
	QuestionKindText QuestionKind = "text"
	// QuestionKindSingle expects one of the listed options.
	QuestionKindSingle QuestionKind = "single"
)

// DiscoveryQuestion is a single entry in the question catalog.
// The catalog is defined at process start and never mutated at runtime.
type DiscoveryQuestion struct {
	ID             int          `json:"id" yaml:"id"`
	Category       string       `json:"category" yaml:"category"`
	Framework      string       `json:"framework,omitempty" yaml:"framework,omitempty"`
	Text           string       `json:"text" yaml:"text"`
	FollowUpPrompt string       `json:"follow_up_prompt,omitempty" yaml:"follow_up_prompt,omitempty"`
	Kind           QuestionKind `json:"kind" yaml:"kind"`
	Options        []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Required       bool         `json:"required" yaml:"required"`
}

// Validate checks structural correctness of a catalog question.
func (q DiscoveryQuestion) Validate() error {
	if q.ID < 1 {
		return fmt.Errorf("question has invalid id %d", q.ID)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question %d has empty text", q.ID)
	}
	switch q.Kind {
	case QuestionKindText:
		if len(q.Options) > 0 {
			return fmt.Errorf("question %d is free-text but lists options", q.ID)
		}
	case QuestionKindSingle:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d is single-choice but has fewer than 2 options", q.ID)
		}
	default:
		return fmt.Errorf("question %d has unknown kind %q", q.ID, q.Kind)
	}
	return nil
}

// Answer is one collected response, bound to its catalog question.
// Answers live only inside the owning session's state row.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Text       string `json:"text"`
}

// SessionCounter tracks completed discovery sessions per device.
// Increment-only; no expiry. The counter is keyed by device, not identity.
type SessionCounter struct {
	DeviceID    string    `json:"device_id"`
	Count       int       `json:"count"`
	LastSession time.Time `json:"last_session"`
}

// API request types

// StartSessionRequest starts a new discovery session for a device.
type StartSessionRequest struct {
	DeviceID string   `json:"device_id"`
	Plan     PlanTier `json:"plan,omitempty"`
}

// Validate checks required fields and normalizes the plan tier.
func (r *StartSessionRequest) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return fmt.Errorf("missing required field: device_id")
	}
	if r.Plan == "" {
		r.Plan = PlanFree
	}
	if !r.Plan.Valid() {
		return fmt.Errorf("unknown plan tier: %s", r.Plan)
	}
	return nil
}

// SubmitAnswerRequest carries one answer for the session's current question.
type SubmitAnswerRequest struct {
	Text string `json:"text"`
}

// ChatMessage is a role-tagged message for the chat relay endpoint.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRelayRequest is the request body for the /chat relay endpoint.
type ChatRelayRequest struct {
	Messages     []ChatMessage `json:"messages"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Model        string        `json:"model,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    *int          `json:"max_tokens,omitempty"`
}

// Validate rejects missing or malformed message arrays.
func (r *ChatRelayRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("missing or invalid 'messages' array")
	}
	for i, m := range r.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d has empty content", i)
		}
	}
	return nil
}

// QAPair is one question/answer pair for the clarity summary relay.
type QAPair struct {
	Question string `json:"question"`
	Value    string `json:"value"`
}

// ClaritySummaryRequest is the request body for the /clarity-summary relay.
type ClaritySummaryRequest struct {
	Answers []QAPair `json:"answers"`
}

// Validate rejects a missing or malformed answers array.
func (r *ClaritySummaryRequest) Validate() error {
	if len(r.Answers) == 0 {
		return fmt.Errorf("missing or invalid 'answers' array")
	}
	for i, a := range r.Answers {
		if strings.TrimSpace(a.Question) == "" {
			return fmt.Errorf("answer %d is missing its question", i)
		}
	}
	return nil
}

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusBlocked indicates the session gate denied entry.
	APIStatusBlocked APIStatus = "blocked"
	// APIStatusPending indicates a retryable operation has not completed yet.
	APIStatusPending APIStatus = "pending"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Blocked creates a blocked API response with a message.
func Blocked(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusBlocked).
		WithMessage(message).
		Build()
}

// Pending creates a pending API response with a message.
func Pending(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusPending).
		WithMessage(message).
		Build()
}
