package models

import (
	"strings"
	"testing"
)

func TestDiscoveryQuestionValidate(t *testing.T) {
	q := DiscoveryQuestion{ID: 1, Category: "Vision", Text: "Describe your ideal week.", Kind: QuestionKindText, Required: true}
	if err := q.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	q.Text = "   "
	if err := q.Validate(); err == nil {
		t.Error("expected error for empty text")
	}

	single := DiscoveryQuestion{ID: 2, Category: "Energy", Text: "How does your daily energy feel?", Kind: QuestionKindSingle, Options: []string{"Drained"}}
	if err := single.Validate(); err == nil || !strings.Contains(err.Error(), "fewer than 2 options") {
		t.Errorf("expected option count error, got %v", err)
	}

	unknown := DiscoveryQuestion{ID: 3, Text: "x", Kind: "multi"}
	if err := unknown.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestStartSessionRequestValidate(t *testing.T) {
	r := StartSessionRequest{DeviceID: "dev-1"}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Plan != PlanFree {
		t.Errorf("expected plan to default to free, got %s", r.Plan)
	}

	r = StartSessionRequest{Plan: PlanPremium}
	if err := r.Validate(); err == nil {
		t.Error("expected error for missing device_id")
	}

	r = StartSessionRequest{DeviceID: "dev-1", Plan: "gold"}
	if err := r.Validate(); err == nil {
		t.Error("expected error for unknown plan tier")
	}
}

func TestChatRelayRequestValidate(t *testing.T) {
	r := ChatRelayRequest{}
	if err := r.Validate(); err == nil {
		t.Error("expected error for empty messages")
	}

	r = ChatRelayRequest{Messages: []ChatMessage{{Role: "system", Content: "hi"}}}
	if err := r.Validate(); err == nil {
		t.Error("expected error for invalid role")
	}

	r = ChatRelayRequest{Messages: []ChatMessage{{Role: "user", Content: "What should I do next?"}}}
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClaritySummaryRequestValidate(t *testing.T) {
	r := ClaritySummaryRequest{}
	if err := r.Validate(); err == nil {
		t.Error("expected error for empty answers")
	}

	r = ClaritySummaryRequest{Answers: []QAPair{{Question: "Career", Value: "Engineer"}}}
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResponseEnvelope(t *testing.T) {
	resp := Success(map[string]int{"n": 1})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %s", resp.Status)
	}
	resp = Error("boom")
	if resp.Status != string(APIStatusError) || resp.Message != "boom" {
		t.Errorf("unexpected error envelope: %+v", resp)
	}
	resp = Blocked("limit reached")
	if resp.Status != string(APIStatusBlocked) {
		t.Errorf("expected blocked status, got %s", resp.Status)
	}
}
