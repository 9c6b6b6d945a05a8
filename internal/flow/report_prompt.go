package flow

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/withinyouai/claritycore/internal/catalog"
	"github.com/withinyouai/claritycore/internal/models"
)

// buildReportMessages assembles the full session transcript into one
// completion request: the roadmap system prompt followed by a user message
// per answered question, in catalog order.
func buildReportMessages(cat *catalog.Catalog, answers []models.Answer) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(answers)+1)
	messages = append(messages, openai.SystemMessage(roadmapSystemPrompt))
	for _, answer := range answers {
		text := answer.Text
		if text == "" {
			text = "(skipped)"
		}
		question, ok := cat.ByID(answer.QuestionID)
		if !ok {
			messages = append(messages, openai.UserMessage(text))
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[%s / %s] %s", question.Category, question.Framework, question.Text)
		if question.FollowUpPrompt != "" {
			fmt.Fprintf(&b, "\n(probe: %s)", question.FollowUpPrompt)
		}
		fmt.Fprintf(&b, "\n\nAnswer: %s", text)
		messages = append(messages, openai.UserMessage(b.String()))
	}
	return messages
}
