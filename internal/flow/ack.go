package flow

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/models"
)

// quickAcknowledgments is the rotating pool of minimal acknowledgments shown
// between questions.
var quickAcknowledgments = []string{
	"Got it! ✓",
	"Received ✓",
	"Perfect! ✓",
	"Noted ✓",
	"Understood ✓",
	"Excellent ✓",
	"Great ✓",
	"Thank you ✓",
}

// DefaultAckTimeout bounds how long a generated acknowledgment may take.
// Acknowledgments are decorative: progression never waits past this.
const DefaultAckTimeout = 3 * time.Second

// AckGenerator produces the short acknowledgment shown after an answer.
// Implementations must always return something usable; they never fail.
type AckGenerator interface {
	Acknowledge(ctx context.Context, question models.DiscoveryQuestion, answer string) string
}

// StaticAckGenerator picks a random entry from the acknowledgment pool.
type StaticAckGenerator struct{}

// Acknowledge returns a random quick acknowledgment.
func (s *StaticAckGenerator) Acknowledge(ctx context.Context, question models.DiscoveryQuestion, answer string) string {
	return quickAcknowledgments[rand.Intn(len(quickAcknowledgments))]
}

// GenAIAckGenerator asks the LLM collaborator for a one-to-two-sentence
// acknowledgment, falling back to the static pool on any error or timeout.
type GenAIAckGenerator struct {
	client  genai.ClientInterface
	timeout time.Duration
	static  StaticAckGenerator
}

// NewGenAIAckGenerator creates an acknowledgment generator over the given
// client. A non-positive timeout falls back to DefaultAckTimeout.
func NewGenAIAckGenerator(client genai.ClientInterface, timeout time.Duration) *GenAIAckGenerator {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &GenAIAckGenerator{client: client, timeout: timeout}
}

const ackSystemPrompt = "You are a warm, encouraging life coach. Reply with a one-to-two-sentence acknowledgment of the person's answer. Do not ask a question; do not give advice."

// Acknowledge requests a short acknowledgment with a bounded deadline.
func (g *GenAIAckGenerator) Acknowledge(ctx context.Context, question models.DiscoveryQuestion, answer string) string {
	if g.client == nil {
		return g.static.Acknowledge(ctx, question, answer)
	}

	ackCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	userPrompt := question.Text + "\n\nAnswer: " + answer
	ack, err := g.client.GeneratePrompt(ackCtx, ackSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("GenAIAckGenerator.Acknowledge: falling back to static pool", "error", err, "questionID", question.ID)
		return g.static.Acknowledge(ctx, question, answer)
	}
	return ack
}
