package flow

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/withinyouai/claritycore/internal/models"
)

// ParseReport turns raw model output into a Report. Output shape is requested
// via natural-language instruction only, so parsing is best-effort: fenced
// code-block markers are stripped by direct substring removal, the remainder
// is parsed strictly, and any failure substitutes the fixed fallback roadmap.
// ParseReport never fails; the UI always has something to render.
func ParseReport(raw string) models.Report {
	cleaned := stripDelimiters(raw)

	var roadmap models.Roadmap
	if err := json.Unmarshal([]byte(cleaned), &roadmap); err != nil {
		slog.Warn("ParseReport: model output not parseable, substituting fallback roadmap",
			"error", err, "rawLength", len(raw))
		fallback := fallbackRoadmap()
		return models.Report{Kind: models.ReportKindFallback, Roadmap: &fallback, Raw: raw}
	}

	// Parsed as-is; the requested shape is not enforced beyond JSON validity.
	return models.Report{Kind: models.ReportKindRoadmap, Roadmap: &roadmap}
}

// stripDelimiters removes markdown code-fence markers around the payload.
func stripDelimiters(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// fallbackRoadmap is the placeholder structure served when parsing fails.
// The user sees a usable dashboard rather than an error.
func fallbackRoadmap() models.Roadmap {
	return models.Roadmap{
		Profile: models.RoadmapProfile{
			Name:    "Your Dream Life",
			Tagline: "A clearer picture is coming into focus",
			Score:   50,
			Level:   "Explorer",
		},
		DreamCareer: models.DreamCareer{
			Title: "Your Career Path",
			Reasons: []string{
				"Your answers point toward work that blends your strengths with what energizes you.",
				"You described concrete moments of flow worth building a direction around.",
			},
			Timeline: "12-24 months",
		},
		Books: []models.Book{
			{Title: "Ikigai", Author: "Héctor García & Francesc Miralles", Reason: "A gentle framework for the questions you just answered."},
			{Title: "Atomic Habits", Author: "James Clear", Reason: "Turning your weekly actions into systems."},
		},
		ActionPlan: []models.ActionWeek{
			{Week: 1, Focus: "Clarity", Tasks: []string{"Re-read your answers and underline recurring themes", "Write one sentence describing your ideal workday"}},
			{Week: 2, Focus: "Exploration", Tasks: []string{"Talk to one person doing work that attracts you", "List three skills you want to grow this quarter"}},
			{Week: 3, Focus: "Momentum", Tasks: []string{"Block two hours for the activity where you lose track of time", "Remove one small obstacle you named"}},
			{Week: 4, Focus: "Commitment", Tasks: []string{"Pick the one goal that would change the most", "Schedule the first concrete step"}},
		},
		MindsetShifts: []string{
			"Progress over perfection.",
			"Your current situation is a starting point, not a verdict.",
		},
		Obstacles: []models.Obstacle{
			{Obstacle: "Not knowing where to start", Solution: "Start with the week-1 actions above; clarity follows motion."},
		},
		Metrics: models.Metrics{
			IkigaiAlignment:    50,
			CareerFit:          50,
			WorkLifeBalance:    50,
			GrowthPotential:    60,
			FinancialViability: 50,
		},
	}
}
