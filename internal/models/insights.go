package models

// Severity levels for portfolio risks.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Insight is a passive observation about the portfolio (risk or summary).
type Insight struct {
	Type           string `json:"type"`
	Severity       string `json:"severity,omitempty"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Actionable is a recommended user action with its expected impact.
type Actionable struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// Opportunity flags a holding worth reviewing.
type Opportunity struct {
	Type       string `json:"type"`
	Fund       string `json:"fund"`
	Return     string `json:"return"`
	Suggestion string `json:"suggestion"`
}

// HealthScore is the composite 0-100 portfolio quality score.
type HealthScore struct {
	Score   int      `json:"score"`
	Grade   string   `json:"grade"`
	Verdict string   `json:"verdict"`
	Factors []string `json:"factors"`
}

// InsightSet bundles everything the insights engine derives for a portfolio.
// It is regenerated in full on every recomputation, never patched.
type InsightSet struct {
	SummaryInsights []Insight     `json:"summary_insights"`
	Risks           []Insight     `json:"risks"`
	Actionables     []Actionable  `json:"actionables"`
	Opportunities   []Opportunity `json:"opportunities"`
	HealthScore     HealthScore   `json:"health_score"`
}
