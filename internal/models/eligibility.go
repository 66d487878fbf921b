package models

import "time"

// CriterionResult is the per-criterion breakdown line of an eligibility check.
// A criterion that could not be evaluated for lack of profile data is encoded
// as Meets=false with Confidence=0 and a Reasoning naming the missing field.
type CriterionResult struct {
	Criterion        EligibilityCriterion `json:"criterion"`
	Meets            bool                 `json:"meets"`
	Confidence       float64              `json:"confidence"` // 0-100
	Reasoning        string               `json:"reasoning"`
	RequiredEvidence []string             `json:"requiredEvidence,omitempty"`
}

// EligibilityCheck is the output of check_eligibility for one
// (organization, criteria set) pair. Never mutated after creation; a new
// check supersedes an old one.
type EligibilityCheck struct {
	OrganizationID      string            `json:"organizationId"`
	OverallEligible     bool              `json:"overallEligible"`
	EligibilityScore    float64           `json:"eligibilityScore"` // 0-100
	Breakdown           []CriterionResult `json:"breakdown"`
	Recommendations     []string          `json:"recommendations"`
	MissingRequirements []string          `json:"missingRequirements"`
	Strengths           []string          `json:"strengths"`
	Weaknesses          []string          `json:"weaknesses"`
	CheckedAt           time.Time         `json:"checkedAt"`
	Metadata            Metadata          `json:"metadata"`
}
