// Package api provides discovery session handlers for ClarityCore endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/withinyouai/claritycore/internal/flow"
	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/models"
)

// discoverySessionsHandler routes all /discovery/sessions endpoints:
//
//	POST /discovery/sessions                 start a session
//	GET  /discovery/sessions/{id}            session status (and report if complete)
//	POST /discovery/sessions/{id}/answers    submit the current answer
//	POST /discovery/sessions/{id}/report     generate the roadmap report
func (s *Server) discoverySessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("discoverySessionsHandler invoked", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/discovery/sessions")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		// /discovery/sessions
		switch r.Method {
		case http.MethodPost:
			s.startSessionHandler(w, r)
		default:
			w.Header().Set("Allow", http.MethodPost)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	sessionID := segments[0]

	if len(segments) == 1 {
		// /discovery/sessions/{id}
		switch r.Method {
		case http.MethodGet:
			s.sessionStatusHandler(w, r, sessionID)
		default:
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 {
		switch segments[1] {
		case "answers":
			// /discovery/sessions/{id}/answers
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			s.submitAnswerHandler(w, r, sessionID)
			return
		case "report":
			// /discovery/sessions/{id}/report
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			s.generateReportHandler(w, r, sessionID)
			return
		}
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown discovery endpoint"))
}

// startSessionHandler handles POST /discovery/sessions.
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("startSessionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("startSessionHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res, err := s.discovery.Start(r.Context(), req.DeviceID, req.Plan)
	if err != nil {
		slog.Error("startSessionHandler start failed", "error", err, "deviceID", req.DeviceID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}
	if res.State == models.StateBlocked {
		response := models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusBlocked).
			WithMessage(res.Message).
			WithResult(res).
			Build()
		writeJSONResponse(w, http.StatusForbidden, response)
		return
	}

	slog.Info("startSessionHandler session started", "sessionID", res.SessionID, "deviceID", req.DeviceID)
	writeJSONResponse(w, http.StatusCreated, models.Success(res))
}

// submitAnswerHandler handles POST /discovery/sessions/{id}/answers.
func (s *Server) submitAnswerHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("submitAnswerHandler invalid JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	res, err := s.discovery.SubmitAnswer(r.Context(), sessionID, req.Text)
	if err != nil {
		s.writeFlowError(w, "submitAnswerHandler", sessionID, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

// generateReportHandler handles POST /discovery/sessions/{id}/report.
func (s *Server) generateReportHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	report, err := s.discovery.GenerateReport(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, flow.ErrReportInProgress) {
			writeJSONResponse(w, http.StatusAccepted, models.Pending("Report generation already in progress"))
			return
		}
		s.writeFlowError(w, "generateReportHandler", sessionID, err)
		return
	}
	slog.Info("generateReportHandler report ready", "sessionID", sessionID, "kind", report.Kind)
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// sessionStatusHandler handles GET /discovery/sessions/{id}.
func (s *Server) sessionStatusHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	status, err := s.discovery.Status(r.Context(), sessionID)
	if err != nil {
		s.writeFlowError(w, "sessionStatusHandler", sessionID, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

// writeFlowError maps discovery flow errors to client-visible status codes.
func (s *Server) writeFlowError(w http.ResponseWriter, handler, sessionID string, err error) {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		slog.Warn(handler+": session not found", "sessionID", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, flow.ErrAnswerRequired):
		writeJSONResponse(w, http.StatusBadRequest, models.Error("An answer is required for this question"))
	case errors.Is(err, flow.ErrInvalidOption):
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Answer is not one of the listed options"))
	case errors.Is(err, flow.ErrNotInProgress):
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is not collecting answers"))
	case errors.Is(err, flow.ErrReportNotReady):
		writeJSONResponse(w, http.StatusConflict, models.Error("Session has not finished the questionnaire"))
	case errors.Is(err, flow.ErrGenAIUnavailable):
		slog.Error(handler+": GenAI client not configured", "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("OpenAI API key not configured. Please check server configuration."))
	case errors.Is(err, genai.ErrAuth) || errors.Is(err, genai.ErrRateLimited) || errors.Is(err, genai.ErrUpstream) || errors.Is(err, genai.ErrNoChoicesReturned):
		s.writeGenAIError(w, handler, err)
	default:
		slog.Error(handler+": unexpected error", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
