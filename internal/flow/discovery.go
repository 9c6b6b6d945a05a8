package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/withinyouai/claritycore/internal/catalog"
	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/models"
)

// Typed errors returned by the discovery flow. The API layer maps these to
// client-visible status codes.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAnswerRequired   = errors.New("an answer is required for this question")
	ErrInvalidOption    = errors.New("answer is not one of the listed options")
	ErrNotInProgress    = errors.New("session is not collecting answers")
	ErrReportNotReady   = errors.New("session has not finished the questionnaire")
	ErrReportInProgress = errors.New("report generation already in progress for this session")
	ErrGenAIUnavailable = errors.New("genai client not configured")
)

// DefaultReportMaxTokens caps the roadmap response size.
const DefaultReportMaxTokens = 3000

// roadmapSystemPrompt requests the structured report. The shape is described
// in natural language only; the parser treats conformance as best-effort.
const roadmapSystemPrompt = `You are an expert life coach and career counselor. Generate a comprehensive Dream Life roadmap based on the user's answers.

Respond with a single JSON object and nothing else, using these keys:
  "profile": {"name", "tagline", "score" (0-100), "level"},
  "dreamCareer": {"title", "ikigai" (object), "hollandCode", "flowPotential", "financialGoal", "reasons" (array), "pathway" (array), "timeline"},
  "books": array of {"title", "author", "rating", "reason"},
  "courses": array of {"title", "provider", "reason"},
  "actionPlan": array of {"week" (number), "focus", "tasks" (array)},
  "mindsetShifts": array of strings,
  "obstacles": array of {"obstacle", "solution"},
  "metrics": {"ikigaiAlignment", "careerFit", "workLifeBalance", "growthPotential", "financialViability"} (each 0-100).

Keep it warm, specific, and non-judgmental.`

// ReportArchive is the slice of the store the flow uses for completed reports.
type ReportArchive interface {
	SaveReport(sessionID string, report models.Report) error
	GetReport(sessionID string) (*models.Report, error)
}

// DiscoveryFlow drives a session through the question catalog and report
// generation. All state lives in the state manager; the struct itself only
// tracks in-flight report generations to block duplicate submissions.
type DiscoveryFlow struct {
	stateManager StateManager
	gate         *SessionGate
	catalog      *catalog.Catalog
	genaiClient  genai.ClientInterface
	ack          AckGenerator
	reports      ReportArchive

	mu         sync.Mutex
	generating map[string]bool
}

// NewDiscoveryFlow creates a discovery flow with its dependencies.
// genaiClient may be nil; report generation then fails with ErrGenAIUnavailable.
func NewDiscoveryFlow(stateManager StateManager, gate *SessionGate, cat *catalog.Catalog, genaiClient genai.ClientInterface, ack AckGenerator, reports ReportArchive) *DiscoveryFlow {
	if ack == nil {
		ack = &StaticAckGenerator{}
	}
	slog.Debug("DiscoveryFlow.NewDiscoveryFlow: creating flow", "questions", cat.Len(), "hasGenAI", genaiClient != nil)
	return &DiscoveryFlow{
		stateManager: stateManager,
		gate:         gate,
		catalog:      cat,
		genaiClient:  genaiClient,
		ack:          ack,
		reports:      reports,
		generating:   make(map[string]bool),
	}
}

// StartResult is returned when a session start is attempted.
type StartResult struct {
	SessionID string                    `json:"session_id,omitempty"`
	State     models.StateType          `json:"state"`
	Greeting  *GreetingMessage          `json:"greeting,omitempty"`
	Question  *models.DiscoveryQuestion `json:"question,omitempty"`
	Step      int                       `json:"step"`
	Total     int                       `json:"total"`
	Message   string                    `json:"message,omitempty"`
}

// AnswerResult is returned after an answer submission.
type AnswerResult struct {
	State          models.StateType          `json:"state"`
	Acknowledgment string                    `json:"acknowledgment,omitempty"`
	NextQuestion   *models.DiscoveryQuestion `json:"next_question,omitempty"`
	Step           int                       `json:"step"`
	Total          int                       `json:"total"`
	Message        string                    `json:"message,omitempty"`
}

// SessionStatus describes a session for the status endpoint.
type SessionStatus struct {
	SessionID string           `json:"session_id"`
	State     models.StateType `json:"state"`
	Step      int              `json:"step"`
	Total     int              `json:"total"`
	Plan      models.PlanTier  `json:"plan"`
	Report    *models.Report   `json:"report,omitempty"`
}

// Start begins a new discovery session for a device, gated by the session
// gate. The gate is consulted at the start action, not earlier: a blocked
// device gets a StartResult in state BLOCKED and no session is created.
func (f *DiscoveryFlow) Start(ctx context.Context, deviceID string, plan models.PlanTier) (*StartResult, error) {
	if !f.gate.CanStart(ctx, deviceID, plan) {
		slog.Info("DiscoveryFlow.Start: session gate denied entry", "deviceID", deviceID, "plan", plan)
		return &StartResult{State: models.StateBlocked, Message: SessionLimitMessage, Total: f.catalog.Len()}, nil
	}

	sessionID := uuid.NewString()
	if err := f.stateManager.SetCurrentState(ctx, sessionID, models.FlowTypeDiscovery, models.StateInProgress); err != nil {
		return nil, fmt.Errorf("failed to initialize session state: %w", err)
	}
	seed := map[models.DataKey]string{
		models.DataKeyStepIndex: "0",
		models.DataKeyAnswers:   "[]",
		models.DataKeyPlan:      string(plan),
		models.DataKeyDeviceID:  deviceID,
	}
	for key, value := range seed {
		if err := f.stateManager.SetStateData(ctx, sessionID, models.FlowTypeDiscovery, key, value); err != nil {
			return nil, fmt.Errorf("failed to seed session data: %w", err)
		}
	}

	greeting := randomGreeting()
	first, _ := f.catalog.At(0)
	slog.Info("DiscoveryFlow.Start: session started", "sessionID", sessionID, "deviceID", deviceID, "plan", plan)
	return &StartResult{
		SessionID: sessionID,
		State:     models.StateInProgress,
		Greeting:  &greeting,
		Question:  &first,
		Step:      0,
		Total:     f.catalog.Len(),
	}, nil
}

// SubmitAnswer records the answer for the session's current question and
// advances the step. The final answer transitions the session to
// AWAITING_REPORT and bumps the device's session counter exactly once.
func (f *DiscoveryFlow) SubmitAnswer(ctx context.Context, sessionID, text string) (*AnswerResult, error) {
	state, err := f.stateManager.GetCurrentState(ctx, sessionID, models.FlowTypeDiscovery)
	if err != nil {
		return nil, err
	}
	if state == "" {
		return nil, ErrSessionNotFound
	}
	if state != models.StateInProgress {
		return nil, ErrNotInProgress
	}

	step, err := f.currentStep(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	question, ok := f.catalog.At(step)
	if !ok {
		return nil, fmt.Errorf("session %s has out-of-range step %d", sessionID, step)
	}

	text = strings.TrimSpace(text)
	if text == "" && question.Required {
		// Validation failure: step index unchanged.
		return nil, ErrAnswerRequired
	}
	if question.Kind == models.QuestionKindSingle && text != "" && !containsOption(question.Options, text) {
		return nil, ErrInvalidOption
	}

	answers, err := f.loadAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answers = append(answers, models.Answer{QuestionID: question.ID, Text: text})
	if err := f.saveAnswers(ctx, sessionID, answers); err != nil {
		return nil, err
	}

	nextStep := step + 1
	if nextStep < f.catalog.Len() {
		if err := f.stateManager.SetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyStepIndex, strconv.Itoa(nextStep)); err != nil {
			return nil, err
		}
		next, _ := f.catalog.At(nextStep)
		ack := f.ack.Acknowledge(ctx, question, text)
		slog.Debug("DiscoveryFlow.SubmitAnswer: advanced", "sessionID", sessionID, "step", nextStep)
		return &AnswerResult{
			State:          models.StateInProgress,
			Acknowledgment: ack,
			NextQuestion:   &next,
			Step:           nextStep,
			Total:          f.catalog.Len(),
		}, nil
	}

	// Final answer: the questionnaire is complete.
	if err := f.stateManager.TransitionState(ctx, sessionID, models.FlowTypeDiscovery, models.StateInProgress, models.StateAwaitingReport); err != nil {
		return nil, err
	}
	deviceID, err := f.stateManager.GetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyDeviceID)
	if err != nil || deviceID == "" {
		slog.Warn("DiscoveryFlow.SubmitAnswer: device id unavailable, skipping counter", "error", err, "sessionID", sessionID)
	} else if err := f.gate.RecordCompletion(ctx, deviceID); err != nil {
		// Counter failures must not block the user's report.
		slog.Warn("DiscoveryFlow.SubmitAnswer: failed to record session completion", "error", err, "sessionID", sessionID)
	}

	slog.Info("DiscoveryFlow.SubmitAnswer: questionnaire complete", "sessionID", sessionID, "answers", len(answers))
	return &AnswerResult{
		State:   models.StateAwaitingReport,
		Step:    f.catalog.Len(),
		Total:   f.catalog.Len(),
		Message: "Perfect! Generating your personalized Dream Life roadmap... ✨",
	}, nil
}

// GenerateReport assembles every question/answer pair into one request to the
// LLM collaborator and parses the result. On upstream failure the session
// stays in AWAITING_REPORT and the caller may retry; there is no automatic
// retry. Calling on a COMPLETE session returns the archived report.
func (f *DiscoveryFlow) GenerateReport(ctx context.Context, sessionID string) (*models.Report, error) {
	state, err := f.stateManager.GetCurrentState(ctx, sessionID, models.FlowTypeDiscovery)
	if err != nil {
		return nil, err
	}
	switch state {
	case "":
		return nil, ErrSessionNotFound
	case models.StateComplete:
		return f.archivedReport(ctx, sessionID)
	case models.StateAwaitingReport:
		// proceed
	default:
		return nil, ErrReportNotReady
	}
	if f.genaiClient == nil {
		return nil, ErrGenAIUnavailable
	}

	f.mu.Lock()
	if f.generating[sessionID] {
		f.mu.Unlock()
		return nil, ErrReportInProgress
	}
	f.generating[sessionID] = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.generating, sessionID)
		f.mu.Unlock()
	}()

	answers, err := f.loadAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages := buildReportMessages(f.catalog, answers)
	raw, err := f.genaiClient.GenerateWithMessages(ctx, messages, genai.WithMaxTokens(DefaultReportMaxTokens))
	if err != nil {
		slog.Error("DiscoveryFlow.GenerateReport: upstream request failed", "error", err, "sessionID", sessionID)
		return nil, err
	}

	report := ParseReport(raw)
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := f.stateManager.SetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyReport, string(payload)); err != nil {
		return nil, err
	}
	if f.reports != nil {
		if err := f.reports.SaveReport(sessionID, report); err != nil {
			slog.Warn("DiscoveryFlow.GenerateReport: failed to archive report", "error", err, "sessionID", sessionID)
		}
	}
	if err := f.stateManager.TransitionState(ctx, sessionID, models.FlowTypeDiscovery, models.StateAwaitingReport, models.StateComplete); err != nil {
		return nil, err
	}

	slog.Info("DiscoveryFlow.GenerateReport: report generated", "sessionID", sessionID, "kind", report.Kind)
	return &report, nil
}

// Status reports the session's current state, progress, and report if complete.
func (f *DiscoveryFlow) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	state, err := f.stateManager.GetCurrentState(ctx, sessionID, models.FlowTypeDiscovery)
	if err != nil {
		return nil, err
	}
	if state == "" {
		return nil, ErrSessionNotFound
	}
	step, err := f.currentStep(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	plan, _ := f.stateManager.GetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyPlan)

	status := &SessionStatus{
		SessionID: sessionID,
		State:     state,
		Step:      step,
		Total:     f.catalog.Len(),
		Plan:      models.PlanTier(plan),
	}
	if state == models.StateComplete {
		report, err := f.archivedReport(ctx, sessionID)
		if err == nil {
			status.Report = report
			status.Step = f.catalog.Len()
		}
	} else if state == models.StateAwaitingReport {
		status.Step = f.catalog.Len()
	}
	return status, nil
}

// archivedReport fetches the report of a completed session, preferring the
// state row and falling back to the archive.
func (f *DiscoveryFlow) archivedReport(ctx context.Context, sessionID string) (*models.Report, error) {
	payload, err := f.stateManager.GetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyReport)
	if err == nil && payload != "" {
		var report models.Report
		if err := json.Unmarshal([]byte(payload), &report); err == nil {
			return &report, nil
		}
		slog.Warn("DiscoveryFlow.archivedReport: stored report undecodable, trying archive", "sessionID", sessionID)
	}
	if f.reports != nil {
		report, err := f.reports.GetReport(sessionID)
		if err != nil {
			return nil, err
		}
		if report != nil {
			return report, nil
		}
	}
	return nil, fmt.Errorf("report missing for completed session %s", sessionID)
}

func (f *DiscoveryFlow) currentStep(ctx context.Context, sessionID string) (int, error) {
	raw, err := f.stateManager.GetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyStepIndex)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	step, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt step index %q for session %s: %w", raw, sessionID, err)
	}
	return step, nil
}

func (f *DiscoveryFlow) loadAnswers(ctx context.Context, sessionID string) ([]models.Answer, error) {
	raw, err := f.stateManager.GetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyAnswers)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var answers []models.Answer
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, fmt.Errorf("corrupt answers for session %s: %w", sessionID, err)
	}
	return answers, nil
}

func (f *DiscoveryFlow) saveAnswers(ctx context.Context, sessionID string, answers []models.Answer) error {
	payload, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	return f.stateManager.SetStateData(ctx, sessionID, models.FlowTypeDiscovery, models.DataKeyAnswers, string(payload))
}

func containsOption(options []string, text string) bool {
	for _, opt := range options {
		if opt == text {
			return true
		}
	}
	return false
}
