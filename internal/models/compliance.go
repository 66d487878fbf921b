package models

import "time"

type RuleCategory string

const (
	RuleFormat    RuleCategory = "format"
	RuleContent   RuleCategory = "content"
	RuleLegal     RuleCategory = "legal"
	RuleFinancial RuleCategory = "financial"
	RuleTechnical RuleCategory = "technical"
)

type RuleSeverity string

const (
	SeverityCritical RuleSeverity = "critical"
	SeverityMajor    RuleSeverity = "major"
	SeverityMinor    RuleSeverity = "minor"
	SeverityWarning  RuleSeverity = "warning"
)

// PredicateKind is the closed set of declarative checks a compliance rule may
// use. Rule definitions are data; they are interpreted, never executed.
type PredicateKind string

const (
	PredicatePattern     PredicateKind = "pattern"
	PredicatePresence    PredicateKind = "presence"
	PredicateAbsence     PredicateKind = "absence"
	PredicateNumericBand PredicateKind = "numeric_bound"
	PredicateLengthBand  PredicateKind = "length_bound"
	PredicateAllOf       PredicateKind = "all_of"
)

// Predicate describes one declarative check against application content.
// Field names the content key under test. For all_of, Conditions carries the
// sub-predicates and the other fields are ignored.
type Predicate struct {
	Kind       PredicateKind `json:"kind"`
	Field      string        `json:"field,omitempty"`
	Pattern    string        `json:"pattern,omitempty"`
	Min        *float64      `json:"min,omitempty"`
	Max        *float64      `json:"max,omitempty"`
	MinLength  *int          `json:"minLength,omitempty"`
	MaxLength  *int          `json:"maxLength,omitempty"`
	Conditions []Predicate   `json:"conditions,omitempty"`
}

// ComplianceRule is one entry of a rule set. Rule sets are configuration,
// loaded once at startup and shared read-only across validations.
type ComplianceRule struct {
	ID            string       `json:"id"`
	Rule          string       `json:"rule"`
	Category      RuleCategory `json:"category"`
	Severity      RuleSeverity `json:"severity"`
	Description   string       `json:"description"`
	Predicate     Predicate    `json:"predicate"`
	FixSuggestion string       `json:"fixSuggestion"`
}

// RuleSet groups the rules applied to one kind of application.
type RuleSet struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Version string           `json:"version"`
	Rules   []ComplianceRule `json:"rules"`
}

// ComplianceStatus has three values: partial means a rule with sub-conditions
// had only some of them satisfied. Partial counts as non-compliant for the
// overall verdict but is reported distinctly for remediation.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non-compliant"
	StatusPartial      ComplianceStatus = "partial"
)

// ComplianceCheck is the evaluation of a single rule.
type ComplianceCheck struct {
	RuleID        string           `json:"ruleId"`
	Rule          string           `json:"rule"`
	Category      RuleCategory     `json:"category"`
	Severity      RuleSeverity     `json:"severity"`
	Status        ComplianceStatus `json:"status"`
	Details       string           `json:"details"`
	FixSuggestion string           `json:"fixSuggestion,omitempty"`
}

// ComplianceResult aggregates all checks for one application.
// Invariant: OverallCompliant is false whenever CriticalIssues is non-empty.
type ComplianceResult struct {
	ApplicationID    string            `json:"applicationId"`
	OverallCompliant bool              `json:"overallCompliant"`
	Checks           []ComplianceCheck `json:"checks"`
	CriticalIssues   []ComplianceCheck `json:"criticalIssues"`
	Recommendations  []string          `json:"recommendations"`
	CheckedAt        time.Time         `json:"checkedAt"`
	Metadata         Metadata          `json:"metadata"`
}
