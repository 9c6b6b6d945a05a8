// Package models defines the report structures returned at session completion.
package models

// ReportKind tags how a report was produced.
type ReportKind string

const (
	// ReportKindRoadmap is a structurally parsed roadmap from the model output.
	ReportKindRoadmap ReportKind = "roadmap"
	// ReportKindFallback is the fixed placeholder roadmap substituted when
	// the model output could not be parsed.
	ReportKindFallback ReportKind = "fallback"
)

// Report is the output rendered to the user at session completion.
// Parsing model output is best-effort: on failure the fallback roadmap is
// substituted and the raw text preserved for inspection.
type Report struct {
	Kind    ReportKind `json:"kind"`
	Roadmap *Roadmap   `json:"roadmap,omitempty"`
	Raw     string     `json:"raw,omitempty"` // unparsed model output, kept only for fallback reports
}

// Roadmap is the structured "dream life roadmap" requested from the model.
// The shape is requested via natural-language instruction only; fields the
// model omits simply stay zero-valued.
type Roadmap struct {
	Profile       RoadmapProfile `json:"profile"`
	DreamCareer   DreamCareer    `json:"dreamCareer"`
	Books         []Book         `json:"books"`
	Courses       []Course       `json:"courses"`
	ActionPlan    []ActionWeek   `json:"actionPlan"`
	MindsetShifts []string       `json:"mindsetShifts"`
	Obstacles     []Obstacle     `json:"obstacles"`
	Metrics       Metrics        `json:"metrics"`
}

// RoadmapProfile is the headline summary card.
type RoadmapProfile struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Score   int    `json:"score"`
	Level   string `json:"level"`
}

// DreamCareer is the suggested career direction with supporting analysis.
type DreamCareer struct {
	Title         string            `json:"title"`
	Ikigai        map[string]string `json:"ikigai,omitempty"`
	HollandCode   string            `json:"hollandCode,omitempty"`
	FlowPotential string            `json:"flowPotential,omitempty"`
	FinancialGoal string            `json:"financialGoal,omitempty"`
	Reasons       []string          `json:"reasons"`
	Pathway       []string          `json:"pathway,omitempty"`
	Timeline      string            `json:"timeline,omitempty"`
}

// Book is one reading-list recommendation.
type Book struct {
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Rating float64 `json:"rating,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Course is one learning recommendation.
type Course struct {
	Title    string `json:"title"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ActionWeek is one week of the action plan.
type ActionWeek struct {
	Week  int      `json:"week"`
	Focus string   `json:"focus,omitempty"`
	Tasks []string `json:"tasks"`
}

// Obstacle pairs a named obstacle with its suggested counter-move.
type Obstacle struct {
	Obstacle string `json:"obstacle"`
	Solution string `json:"solution"`
}

// Metrics are 0-100 alignment scores shown as rings on the dashboard.
type Metrics struct {
	IkigaiAlignment    int `json:"ikigaiAlignment"`
	CareerFit          int `json:"careerFit"`
	WorkLifeBalance    int `json:"workLifeBalance"`
	GrowthPotential    int `json:"growthPotential"`
	FinancialViability int `json:"financialViability"`
}
