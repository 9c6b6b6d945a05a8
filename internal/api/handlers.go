// Package api provides HTTP handlers for ClarityCore endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/models"
)

// claritySummarySystemPrompt requests the short pre-report snapshot shown
// while the full roadmap is generated.
const claritySummarySystemPrompt = "You are a warm, insightful life coach. Based on the person's answers, write a roughly 120-word clarity snapshot: what drives them, where their energy is, and one encouraging observation. Write directly to the person in second person. No lists, no headers."

// DefaultSummaryMaxTokens caps the clarity snapshot response size.
const DefaultSummaryMaxTokens = 250

// healthHandler reports liveness (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).String(),
	}))
}

// statsHandler returns service statistics (GET /stats).
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("statsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("statsHandler method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	categories := make(map[string]int)
	for _, q := range s.cat.Questions() {
		categories[q.Category]++
	}
	stats := map[string]interface{}{
		"questions_total":        s.cat.Len(),
		"questions_per_category": categories,
		"genai_configured":       s.gaClient != nil,
		"uptime_seconds":         int(time.Since(s.startedAt).Seconds()),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// questionsHandler returns the discovery question catalog (GET /questions).
func (s *Server) questionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("questionsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("questionsHandler method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	category := r.URL.Query().Get("category")
	questions := s.cat.Questions()
	if category != "" {
		questions = s.cat.ByCategory(category)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"questions": questions,
		"count":     len(questions),
	}))
}

// chatHandler relays a chat conversation to the LLM collaborator
// (POST /chat). The caller supplies the history; nothing is persisted.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("chatHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("chatHandler method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gaClient == nil {
		slog.Warn("chatHandler: GenAI client not configured")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("OpenAI API key not configured. Please check server configuration."))
		return
	}

	var req models.ChatRelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("chatHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("chatHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	var callOpts []genai.ChatOption
	if req.Model != "" {
		callOpts = append(callOpts, genai.WithChatModel(shared.ChatModel(req.Model)))
	}
	if req.Temperature != nil {
		callOpts = append(callOpts, genai.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		callOpts = append(callOpts, genai.WithMaxTokens(*req.MaxTokens))
	}

	reply, err := s.gaClient.GenerateWithMessages(r.Context(), messages, callOpts...)
	if err != nil {
		s.writeGenAIError(w, "chatHandler", err)
		return
	}
	slog.Debug("chatHandler relay succeeded", "messages", len(req.Messages), "replyLength", len(reply))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"message": reply}))
}

// claritySummaryHandler generates the short clarity snapshot from raw
// question/answer pairs (POST /clarity-summary). Uses the cheaper model.
func (s *Server) claritySummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("claritySummaryHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("claritySummaryHandler method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.gaClient == nil {
		slog.Warn("claritySummaryHandler: GenAI client not configured")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("OpenAI API key not configured. Please check server configuration."))
		return
	}

	var req models.ClaritySummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("claritySummaryHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("claritySummaryHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	var b strings.Builder
	for _, pair := range req.Answers {
		fmt.Fprintf(&b, "%s\n%s\n\n", pair.Question, pair.Value)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(claritySummarySystemPrompt),
		openai.UserMessage(b.String()),
	}
	summary, err := s.gaClient.GenerateWithMessages(r.Context(), messages,
		genai.WithChatModel(genai.SummaryModel),
		genai.WithMaxTokens(DefaultSummaryMaxTokens))
	if err != nil {
		s.writeGenAIError(w, "claritySummaryHandler", err)
		return
	}
	// Strip fences the cheaper model sometimes adds around plain text.
	summary = strings.TrimSpace(strings.ReplaceAll(summary, "```", ""))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"summary": summary}))
}

// writeGenAIError maps classified upstream errors to client-visible status
// codes. Auth failures are server misconfiguration, never the client's fault.
func (s *Server) writeGenAIError(w http.ResponseWriter, handler string, err error) {
	switch {
	case errors.Is(err, genai.ErrAuth):
		slog.Error(handler+": upstream authentication failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("OpenAI API authentication failed. Please check server configuration."))
	case errors.Is(err, genai.ErrRateLimited):
		slog.Warn(handler+": upstream rate limited", "error", err)
		writeJSONResponse(w, http.StatusTooManyRequests, models.Error("Too many requests. Please wait a moment and try again."))
	default:
		slog.Error(handler+": upstream request failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to get AI response. Please try again."))
	}
}
