package models

import "time"

// RequirementKind classifies how binding an extracted requirement is.
type RequirementKind string

const (
	RequirementMandatory RequirementKind = "mandatory"
	RequirementPreferred RequirementKind = "preferred"
	RequirementOptional  RequirementKind = "optional"
)

// RequirementCategory buckets requirements by subject area.
type RequirementCategory string

const (
	CategoryFinancial      RequirementCategory = "financial"
	CategoryTechnical      RequirementCategory = "technical"
	CategoryLegal          RequirementCategory = "legal"
	CategoryOrganizational RequirementCategory = "organizational"
	CategoryProject        RequirementCategory = "project"
)

// GrantRequirement is a single structured requirement extracted from grant
// text. Immutable once produced; SourceExcerpt always points back into the
// analyzed text.
type GrantRequirement struct {
	ID            string              `json:"id"`
	Description   string              `json:"description"`
	Kind          RequirementKind     `json:"kind"`
	Category      RequirementCategory `json:"category"`
	SourceExcerpt string              `json:"sourceExcerpt"`
	Importance    int                 `json:"importance"` // 1-10, own scale, never compared to confidence
}

// CriterionKind classifies eligibility criteria by what they test.
type CriterionKind string

const (
	CriterionLocation   CriterionKind = "location"
	CriterionSize       CriterionKind = "size"
	CriterionSector     CriterionKind = "sector"
	CriterionLegal      CriterionKind = "legal"
	CriterionFinancial  CriterionKind = "financial"
	CriterionExperience CriterionKind = "experience"
)

// EligibilityCriterion is an extracted eligibility rule a candidate
// organization is later evaluated against.
type EligibilityCriterion struct {
	ID                 string        `json:"id"`
	Criterion          string        `json:"criterion"`
	Kind               CriterionKind `json:"kind"`
	Mandatory          bool          `json:"mandatory"`
	Conditions         []string      `json:"conditions"`
	VerificationMethod string        `json:"verificationMethod"`
	SourceExcerpt      string        `json:"sourceExcerpt"`
}

// AnalysisDepth selects extraction behavior.
type AnalysisDepth string

const (
	DepthBasic AnalysisDepth = "basic"
	DepthDeep  AnalysisDepth = "deep"
)

// GrantAnalysisResult is the output of analyze_grant_requirements.
type GrantAnalysisResult struct {
	GrantID             string                 `json:"grantId"`
	Requirements        []GrantRequirement     `json:"requirements"`
	EligibilityCriteria []EligibilityCriterion `json:"eligibilityCriteria"`
	AnalysisDate        time.Time              `json:"analysisDate"`
	Confidence          float64                `json:"confidence"` // 0-100, produced by the confidence scorer
	Status              AnalysisStatus         `json:"status"`
	Metadata            Metadata               `json:"metadata"`
}
