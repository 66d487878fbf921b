package models

import "time"

// Outcome is the known funding result of a historical application.
type Outcome string

const (
	OutcomeFunded   Outcome = "funded"
	OutcomeRejected Outcome = "rejected"
)

// ApplicationOutcome is one corpus entry: a past application with its known
// result. Read-only input to the pattern miner.
type ApplicationOutcome struct {
	ID               string    `json:"id"`
	GrantType        string    `json:"grantType"`
	OrganizationType OrgType   `json:"organizationType"`
	Summary          string    `json:"summary"`
	Outcome          Outcome   `json:"outcome"`
	Score            *float64  `json:"score,omitempty"` // reviewer score where available
	SubmittedAt      time.Time `json:"submittedAt"`
}

// PatternExample is a corpus excerpt exhibiting a pattern.
type PatternExample struct {
	Excerpt string   `json:"excerpt"`
	Outcome Outcome  `json:"outcome"`
	Score   *float64 `json:"score,omitempty"`
}

// SuccessPattern is a recurring feature correlated with funded outcomes.
// Frequency stays on its 0-1 scale and Impact on its 1-10 scale; neither is
// a confidence value.
type SuccessPattern struct {
	ID               string           `json:"id"`
	GrantType        string           `json:"grantType"`
	OrganizationType OrgType          `json:"organizationType"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Frequency        float64          `json:"frequency"` // fraction of funded applications exhibiting it
	Impact           int              `json:"impact"`    // 1-10
	Examples         []PatternExample `json:"examples"`
	Applicability    []string         `json:"applicability,omitempty"`
	Tips             []string         `json:"tips,omitempty"`
}

// SuccessPatternResult is the output of analyze_success_patterns. A cached,
// recomputable derived view, not durable source of truth.
type SuccessPatternResult struct {
	GrantType  string           `json:"grantType"`
	Scope      string           `json:"scope"`
	Patterns   []SuccessPattern `json:"patterns"`
	SampleSize int              `json:"sampleSize"`
	Confidence float64          `json:"confidence"` // 0-100, capped when the sample is small
	Status     AnalysisStatus   `json:"status"`
	AnalyzedAt time.Time        `json:"analyzedAt"`
	Metadata   Metadata         `json:"metadata"`
}
