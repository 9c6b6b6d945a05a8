package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/withinyouai/claritycore/internal/catalog"
	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/models"
	"github.com/withinyouai/claritycore/internal/store"
)

// mockGenAIClient implements genai.ClientInterface with canned responses.
// When started and release are set, GenerateWithMessages signals started and
// then blocks until release is closed, so tests can hold a call in flight.
type mockGenAIClient struct {
	response string
	err      error
	calls    int
	lastMsgs []openai.ChatCompletionMessageParamUnion
	started  chan struct{}
	release  chan struct{}
}

func (m *mockGenAIClient) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	return m.response, m.err
}

func (m *mockGenAIClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts ...genai.ChatOption) (string, error) {
	m.calls++
	m.lastMsgs = messages
	if m.started != nil {
		close(m.started)
		m.started = nil
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func newTestFlow(t *testing.T, client genai.ClientInterface) (*DiscoveryFlow, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	gate := NewSessionGate(st, DefaultFreeSessionLimit)
	return NewDiscoveryFlow(sm, gate, catalog.Default(), client, &StaticAckGenerator{}, st), st
}

// answerAll walks a session through the whole catalog with generic answers.
func answerAll(t *testing.T, f *DiscoveryFlow, sessionID string) *AnswerResult {
	t.Helper()
	var last *AnswerResult
	for i := 0; i < f.catalog.Len(); i++ {
		res, err := f.SubmitAnswer(context.Background(), sessionID, "I love building things and helping people grow.")
		if err != nil {
			t.Fatalf("SubmitAnswer step %d: %v", i, err)
		}
		last = res
	}
	return last
}

func TestStartCreatesSessionWithFirstQuestion(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	res, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.SessionID == "" {
		t.Error("expected a session id")
	}
	if res.State != models.StateInProgress {
		t.Errorf("expected state %s, got %s", models.StateInProgress, res.State)
	}
	if res.Greeting == nil || res.Greeting.Title == "" {
		t.Error("expected a greeting message")
	}
	if res.Question == nil || res.Question.ID != 1 {
		t.Errorf("expected first catalog question, got %+v", res.Question)
	}
	if res.Step != 0 || res.Total != f.catalog.Len() {
		t.Errorf("expected step 0/%d, got %d/%d", f.catalog.Len(), res.Step, res.Total)
	}
}

func TestStartBlockedAfterFreeSessionUsed(t *testing.T) {
	f, st := newTestFlow(t, nil)
	if err := st.IncrementSessionCounter("device-1", time.Now()); err != nil {
		t.Fatalf("IncrementSessionCounter: %v", err)
	}

	res, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.State != models.StateBlocked {
		t.Errorf("expected state %s, got %s", models.StateBlocked, res.State)
	}
	if res.SessionID != "" {
		t.Error("blocked start must not create a session")
	}
	if res.Message != SessionLimitMessage {
		t.Errorf("expected session limit message, got %q", res.Message)
	}

	// Premium is never blocked.
	res, err = f.Start(context.Background(), "device-1", models.PlanPremium)
	if err != nil {
		t.Fatalf("Start premium: %v", err)
	}
	if res.State != models.StateInProgress {
		t.Errorf("premium start blocked: state %s", res.State)
	}
}

func TestSubmitAnswerAdvancesSequentially(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := f.SubmitAnswer(context.Background(), start.SessionID, "Painting, teaching, long walks.")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.State != models.StateInProgress {
		t.Errorf("expected state %s, got %s", models.StateInProgress, res.State)
	}
	if res.Step != 1 {
		t.Errorf("expected step 1, got %d", res.Step)
	}
	if res.NextQuestion == nil || res.NextQuestion.ID != 2 {
		t.Errorf("expected question 2 next, got %+v", res.NextQuestion)
	}
	if res.Acknowledgment == "" {
		t.Error("expected an acknowledgment")
	}
}

func TestSubmitAnswerRequiredRejectsEmpty(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = f.SubmitAnswer(context.Background(), start.SessionID, "   ")
	if !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("expected ErrAnswerRequired, got %v", err)
	}

	// A rejected answer must not advance the step.
	status, err := f.Status(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Step != 0 {
		t.Errorf("expected step 0 after rejected answer, got %d", status.Step)
	}
}

func TestSubmitAnswerOptionalAllowsEmpty(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Find the first optional question and answer up to it.
	optionalStep := -1
	for i, q := range f.catalog.Questions() {
		if !q.Required {
			optionalStep = i
			break
		}
	}
	if optionalStep < 0 {
		t.Skip("catalog has no optional questions")
	}
	for i := 0; i < optionalStep; i++ {
		if _, err := f.SubmitAnswer(context.Background(), start.SessionID, "something real"); err != nil {
			t.Fatalf("SubmitAnswer step %d: %v", i, err)
		}
	}

	res, err := f.SubmitAnswer(context.Background(), start.SessionID, "")
	if err != nil {
		t.Fatalf("empty answer to optional question: %v", err)
	}
	if res.Step != optionalStep+1 {
		t.Errorf("expected step %d after empty optional answer, got %d", optionalStep+1, res.Step)
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	_, err := f.SubmitAnswer(context.Background(), "nope", "answer")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFinalAnswerTransitionsAndIncrementsOnce(t *testing.T) {
	f, st := newTestFlow(t, nil)
	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	last := answerAll(t, f, start.SessionID)
	if last.State != models.StateAwaitingReport {
		t.Errorf("expected state %s, got %s", models.StateAwaitingReport, last.State)
	}
	if last.NextQuestion != nil {
		t.Error("final answer must not return another question")
	}

	counter, err := st.GetSessionCounter("device-1")
	if err != nil {
		t.Fatalf("GetSessionCounter: %v", err)
	}
	if counter == nil || counter.Count != 1 {
		t.Fatalf("expected count 1, got %+v", counter)
	}

	// Further submissions are rejected and never bump the counter again.
	_, err = f.SubmitAnswer(context.Background(), start.SessionID, "one more")
	if !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}
	counter, _ = st.GetSessionCounter("device-1")
	if counter.Count != 1 {
		t.Errorf("counter bumped twice: %d", counter.Count)
	}
}

func TestGenerateReportParsesFencedJSON(t *testing.T) {
	client := &mockGenAIClient{response: "```json\n{\"profile\":{\"name\":\"The Builder\",\"score\":88},\"dreamCareer\":{\"title\":\"Product Studio Founder\"},\"metrics\":{\"ikigaiAlignment\":90}}\n```"}
	f, st := newTestFlow(t, client)
	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerAll(t, f, start.SessionID)

	report, err := f.GenerateReport(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.Kind != models.ReportKindRoadmap {
		t.Errorf("expected kind %s, got %s", models.ReportKindRoadmap, report.Kind)
	}
	if report.Roadmap == nil || report.Roadmap.Profile.Name != "The Builder" {
		t.Errorf("parsed roadmap wrong: %+v", report.Roadmap)
	}
	// One completion request carries the whole transcript.
	if client.calls != 1 {
		t.Errorf("expected a single upstream call, got %d", client.calls)
	}
	if len(client.lastMsgs) != f.catalog.Len()+1 {
		t.Errorf("expected %d messages, got %d", f.catalog.Len()+1, len(client.lastMsgs))
	}

	status, err := f.Status(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != models.StateComplete {
		t.Errorf("expected state %s, got %s", models.StateComplete, status.State)
	}
	if status.Report == nil {
		t.Error("expected report in status")
	}

	archived, err := st.GetReport(start.SessionID)
	if err != nil || archived == nil {
		t.Fatalf("expected archived report, got %v, err %v", archived, err)
	}
}

func TestGenerateReportFallbackOnMalformedOutput(t *testing.T) {
	client := &mockGenAIClient{response: "Here is your roadmap! You should become a baker."}
	f, _ := newTestFlow(t, client)
	start, _ := f.Start(context.Background(), "device-1", models.PlanFree)
	answerAll(t, f, start.SessionID)

	report, err := f.GenerateReport(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.Kind != models.ReportKindFallback {
		t.Errorf("expected kind %s, got %s", models.ReportKindFallback, report.Kind)
	}
	if report.Roadmap == nil {
		t.Fatal("fallback must still carry a roadmap")
	}
	if !strings.Contains(report.Raw, "baker") {
		t.Errorf("raw output not preserved: %q", report.Raw)
	}
}

func TestGenerateReportUpstreamFailureKeepsSessionRetryable(t *testing.T) {
	client := &mockGenAIClient{err: genai.ErrUpstream}
	f, _ := newTestFlow(t, client)
	start, _ := f.Start(context.Background(), "device-1", models.PlanFree)
	answerAll(t, f, start.SessionID)

	_, err := f.GenerateReport(context.Background(), start.SessionID)
	if !errors.Is(err, genai.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	status, err := f.Status(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != models.StateAwaitingReport {
		t.Errorf("failed generation must leave state %s, got %s", models.StateAwaitingReport, status.State)
	}

	// A later retry succeeds.
	client.err = nil
	client.response = `{"profile":{"name":"Retry"}}`
	report, err := f.GenerateReport(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("retry GenerateReport: %v", err)
	}
	if report.Kind != models.ReportKindRoadmap {
		t.Errorf("expected parsed roadmap on retry, got %s", report.Kind)
	}
}

func TestGenerateReportIdempotentWhenComplete(t *testing.T) {
	client := &mockGenAIClient{response: `{"profile":{"name":"Once"}}`}
	f, _ := newTestFlow(t, client)
	start, _ := f.Start(context.Background(), "device-1", models.PlanFree)
	answerAll(t, f, start.SessionID)

	if _, err := f.GenerateReport(context.Background(), start.SessionID); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	report, err := f.GenerateReport(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("second GenerateReport: %v", err)
	}
	if report.Roadmap == nil || report.Roadmap.Profile.Name != "Once" {
		t.Errorf("expected archived report, got %+v", report.Roadmap)
	}
	if client.calls != 1 {
		t.Errorf("expected no second upstream call, got %d", client.calls)
	}
}

func TestGenerateReportBeforeFinishRejected(t *testing.T) {
	f, _ := newTestFlow(t, &mockGenAIClient{response: "{}"})
	start, _ := f.Start(context.Background(), "device-1", models.PlanFree)

	_, err := f.GenerateReport(context.Background(), start.SessionID)
	if !errors.Is(err, ErrReportNotReady) {
		t.Fatalf("expected ErrReportNotReady, got %v", err)
	}
}

func TestGenerateReportWithoutClient(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	start, _ := f.Start(context.Background(), "device-1", models.PlanFree)
	answerAll(t, f, start.SessionID)

	_, err := f.GenerateReport(context.Background(), start.SessionID)
	if !errors.Is(err, ErrGenAIUnavailable) {
		t.Fatalf("expected ErrGenAIUnavailable, got %v", err)
	}
}

func TestGenerateReportRejectsConcurrentCall(t *testing.T) {
	client := &mockGenAIClient{
		response: `{"profile":{"name":"The Maker","score":91}}`,
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	started := client.started
	f, _ := newTestFlow(t, client)
	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerAll(t, f, start.SessionID)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.GenerateReport(context.Background(), start.SessionID)
		firstDone <- err
	}()
	<-started

	// With the first call held at the upstream request, a second call for the
	// same session must be turned away instead of generating twice.
	if _, err := f.GenerateReport(context.Background(), start.SessionID); !errors.Is(err, ErrReportInProgress) {
		t.Errorf("expected ErrReportInProgress, got %v", err)
	}

	close(client.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("in-flight generation failed: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected a single upstream call, got %d", client.calls)
	}

	// The guard clears once generation finishes.
	report, err := f.GenerateReport(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("GenerateReport after completion: %v", err)
	}
	if report.Roadmap == nil || report.Roadmap.Profile.Name != "The Maker" {
		t.Errorf("unexpected archived report: %+v", report)
	}
}

func TestTwoQuestionSessionEndToEnd(t *testing.T) {
	cat, err := catalog.New([]models.DiscoveryQuestion{
		{ID: 1, Category: "Career", Text: "What does your ideal career look like?", Kind: models.QuestionKindText, Required: true},
		{ID: 2, Category: "Morning routine", Text: "Walk me through your ideal morning.", Kind: models.QuestionKindText, Required: true},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	client := &mockGenAIClient{response: `{"profile":{"name":"Focused Builder","score":75}}`}
	st := store.NewInMemoryStore()
	f := NewDiscoveryFlow(NewStoreBasedStateManager(st), NewSessionGate(st, 1), cat, client, &StaticAckGenerator{}, st)

	start, err := f.Start(context.Background(), "device-1", models.PlanFree)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.SubmitAnswer(context.Background(), start.SessionID, "Running a small studio."); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	last, err := f.SubmitAnswer(context.Background(), start.SessionID, "Slow coffee, then deep work.")
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if last.State != models.StateAwaitingReport {
		t.Fatalf("expected %s, got %s", models.StateAwaitingReport, last.State)
	}

	report, err := f.GenerateReport(context.Background(), start.SessionID)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.Roadmap.Profile.Name != "Focused Builder" || report.Roadmap.Profile.Score != 75 {
		t.Errorf("report does not match model output: %+v", report.Roadmap.Profile)
	}
	// System message plus one user message per answered question.
	if len(client.lastMsgs) != 3 {
		t.Errorf("expected 3 messages, got %d", len(client.lastMsgs))
	}

	status, _ := f.Status(context.Background(), start.SessionID)
	if status.State != models.StateComplete {
		t.Errorf("expected %s, got %s", models.StateComplete, status.State)
	}
	counter, _ := st.GetSessionCounter("device-1")
	if counter == nil || counter.Count != 1 {
		t.Errorf("expected counter 1, got %+v", counter)
	}
	if f.gate.CanStart(context.Background(), "device-1", models.PlanFree) {
		t.Error("device should be gated after its free session")
	}
}

func TestStatusUnknownSession(t *testing.T) {
	f, _ := newTestFlow(t, nil)
	_, err := f.Status(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
