package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/withinyouai/claritycore/internal/models"
)

// startSession posts a start request and returns the decoded envelope.
func startSession(t *testing.T, srv *Server, deviceID, plan string) (int, models.APIResponse) {
	t.Helper()
	body := `{"device_id":"` + deviceID + `"`
	if plan != "" {
		body += `,"plan":"` + plan + `"`
	}
	body += `}`
	req := httptest.NewRequest("POST", "/discovery/sessions", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	return rr.Code, decodeResponse(t, rr)
}

// sessionIDFromStart digs the session id out of a start response envelope.
func sessionIDFromStart(t *testing.T, resp models.APIResponse) string {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	id, _ := result["session_id"].(string)
	if id == "" {
		t.Fatalf("no session id in %v", result)
	}
	return id
}

func submitAnswer(t *testing.T, srv *Server, sessionID, text string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(models.SubmitAnswerRequest{Text: text})
	req := httptest.NewRequest("POST", "/discovery/sessions/"+sessionID+"/answers", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	return rr
}

func TestStartSessionHandler(t *testing.T) {
	srv := newTestServer(t, nil)
	code, resp := startSession(t, srv, "device-1", "")
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status, got %s", resp.Status)
	}
	result := resp.Result.(map[string]interface{})
	if result["greeting"] == nil || result["question"] == nil {
		t.Errorf("expected greeting and first question, got %v", result)
	}
}

func TestStartSessionHandlerValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	cases := []struct {
		name string
		body string
	}{
		{"missing device", `{}`},
		{"blank device", `{"device_id":"  "}`},
		{"unknown plan", `{"device_id":"d","plan":"gold"}`},
		{"malformed json", `{"device_id"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/discovery/sessions", bytes.NewBufferString(tc.body))
			rr := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestStartSessionHandlerBlocked(t *testing.T) {
	srv := newTestServer(t, &mockGenAIClient{response: `{"profile":{"name":"Done"}}`})

	// Complete one full free session.
	_, resp := startSession(t, srv, "device-1", "free")
	sessionID := sessionIDFromStart(t, resp)
	for i := 0; i < srv.cat.Len(); i++ {
		rr := submitAnswer(t, srv, sessionID, "a meaningful answer")
		if rr.Code != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d: %s", i, rr.Code, rr.Body.String())
		}
	}

	code, blocked := startSession(t, srv, "device-1", "free")
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if blocked.Status != string(models.APIStatusBlocked) {
		t.Errorf("expected blocked status, got %s", blocked.Status)
	}
	if blocked.Message == "" {
		t.Error("expected an upgrade message")
	}

	// Premium on the same device still passes.
	code, _ = startSession(t, srv, "device-1", "premium")
	if code != http.StatusCreated {
		t.Errorf("expected 201 for premium, got %d", code)
	}
}

func TestSubmitAnswerHandlerErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := submitAnswer(t, srv, "missing-session", "hello")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rr.Code)
	}

	_, resp := startSession(t, srv, "device-1", "")
	sessionID := sessionIDFromStart(t, resp)

	rr = submitAnswer(t, srv, sessionID, "   ")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty required answer, got %d", rr.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	client := &mockGenAIClient{response: "```json\n{\"profile\":{\"name\":\"The Maker\",\"score\":91}}\n```"}
	srv := newTestServer(t, client)

	_, resp := startSession(t, srv, "device-1", "")
	sessionID := sessionIDFromStart(t, resp)

	for i := 0; i < srv.cat.Len(); i++ {
		rr := submitAnswer(t, srv, sessionID, "building and sharing")
		if rr.Code != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d: %s", i, rr.Code, rr.Body.String())
		}
	}

	// Report before the questionnaire finishes would be 409; now it succeeds.
	req := httptest.NewRequest("POST", "/discovery/sessions/"+sessionID+"/report", nil)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	report := decodeResponse(t, rr).Result.(map[string]interface{})
	if report["kind"] != string(models.ReportKindRoadmap) {
		t.Errorf("expected roadmap kind, got %v", report["kind"])
	}

	// Status shows the completed session with its report.
	req = httptest.NewRequest("GET", "/discovery/sessions/"+sessionID, nil)
	rr = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rr.Code)
	}
	status := decodeResponse(t, rr).Result.(map[string]interface{})
	if status["state"] != string(models.StateComplete) {
		t.Errorf("expected state %s, got %v", models.StateComplete, status["state"])
	}
	if status["report"] == nil {
		t.Error("expected report in status")
	}
}

func TestGenerateReportHandlerBeforeFinish(t *testing.T) {
	srv := newTestServer(t, &mockGenAIClient{response: "{}"})
	_, resp := startSession(t, srv, "device-1", "")
	sessionID := sessionIDFromStart(t, resp)

	req := httptest.NewRequest("POST", "/discovery/sessions/"+sessionID+"/report", nil)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rr.Code)
	}
}

func TestGenerateReportHandlerConcurrent(t *testing.T) {
	client := &mockGenAIClient{
		response: `{"profile":{"name":"The Maker","score":91}}`,
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	started := client.started
	srv := newTestServer(t, client)

	_, resp := startSession(t, srv, "device-1", "")
	sessionID := sessionIDFromStart(t, resp)
	for i := 0; i < srv.cat.Len(); i++ {
		rr := submitAnswer(t, srv, sessionID, "building and sharing")
		if rr.Code != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d: %s", i, rr.Code, rr.Body.String())
		}
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest("POST", "/discovery/sessions/"+sessionID+"/report", nil)
		rr := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rr, req)
		firstDone <- rr
	}()
	<-started

	// A second request while generation is in flight gets a pending envelope.
	req := httptest.NewRequest("POST", "/discovery/sessions/"+sessionID+"/report", nil)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 while in flight, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp.Status != string(models.APIStatusPending) {
		t.Errorf("expected pending status, got %s", resp.Status)
	}

	close(client.release)
	if first := <-firstDone; first.Code != http.StatusOK {
		t.Fatalf("in-flight request: expected 200, got %d: %s", first.Code, first.Body.String())
	}
}

func TestDiscoveryRoutingUnknownEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest("GET", "/discovery/sessions/abc/answers/extra", nil)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
