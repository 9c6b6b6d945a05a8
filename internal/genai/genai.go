// Package genai provides the LLM collaborator client used for acknowledgments,
// clarity summaries, and roadmap report generation, built on the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// Default generation parameters.
const (
	// DefaultModel is used when a call does not override the model.
	DefaultModel = openai.ChatModelGPT4o
	// SummaryModel is the cheaper model used for short clarity summaries.
	SummaryModel = openai.ChatModelGPT4oMini
	// DefaultTemperature matches the product's conversational tone setting.
	DefaultTemperature = 0.7
)

// Sentinel errors surfaced to the API layer. Upstream failures are classified
// so handlers can map them to client-visible status codes.
var (
	// ErrNoChoicesReturned indicates the completion response carried no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrAuth indicates the upstream credential is missing or rejected.
	ErrAuth = errors.New("upstream authentication failed")
	// ErrRateLimited indicates the upstream rate limit was reached.
	ErrRateLimited = errors.New("upstream rate limit reached")
	// ErrUpstream indicates a transient upstream service failure.
	ErrUpstream = errors.New("upstream service error")
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// completionsAdapter adapts the OpenAI SDK service to chatService.
type completionsAdapter struct {
	svc openai.ChatCompletionService
}

func (a *completionsAdapter) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return a.svc.New(ctx, params)
}

// ClientInterface is the surface the flow package depends on; it lets tests
// substitute a mock collaborator.
type ClientInterface interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts ...ChatOption) (string, error)
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey string
	Model  shared.ChatModel
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding $OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the default model for all calls.
func WithModel(model shared.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model shared.ChatModel
}

// NewClient initializes a new client from options, falling back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("genai.NewClient: client created", "model", model)
	return &Client{chat: &completionsAdapter{svc: cli.Chat.Completions}, model: model}, nil
}

// ChatOpts holds per-call overrides.
type ChatOpts struct {
	Model       shared.ChatModel
	Temperature param.Opt[float64]
	MaxTokens   param.Opt[int64]
}

// ChatOption configures a single completion call.
type ChatOption func(*ChatOpts)

// WithChatModel overrides the model for one call.
func WithChatModel(model shared.ChatModel) ChatOption {
	return func(o *ChatOpts) { o.Model = model }
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float64) ChatOption {
	return func(o *ChatOpts) { o.Temperature = openai.Float(t) }
}

// WithMaxTokens caps the output token count for one call.
func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOpts) { o.MaxTokens = openai.Int(int64(n)) }
}

// GeneratePrompt generates a response from a system and user prompt pair.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.GenerateWithMessages(ctx, messages)
}

// GenerateWithMessages generates a response from a full message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts ...ChatOption) (string, error) {
	call := ChatOpts{Model: c.model, Temperature: openai.Float(DefaultTemperature)}
	for _, opt := range opts {
		opt(&call)
	}

	params := openai.ChatCompletionNewParams{
		Model:       call.Model,
		Messages:    messages,
		Temperature: call.Temperature,
	}
	if call.MaxTokens.Valid() {
		params.MaxTokens = call.MaxTokens
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("genai.GenerateWithMessages: completion failed", "error", err, "model", call.Model)
		return "", ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.GenerateWithMessages: empty choices", "model", call.Model)
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("genai.GenerateWithMessages: completion succeeded",
		"model", call.Model, "responseLength", len(content), "totalTokens", resp.Usage.TotalTokens)
	return content, nil
}

// ClassifyError maps OpenAI API errors onto the package sentinels so callers
// can choose a client-visible status code. Non-API errors (network, context
// cancellation) are classified as upstream failures.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case apierr.StatusCode == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		default:
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
