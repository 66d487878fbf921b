// Package validatecompliance checks application content against declarative
// rule sets. Rules are data: a closed set of predicate kinds interpreted at
// runtime, never executed.
package validatecompliance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"
)

const (
	Name = "validate_compliance"
)

type Handler struct {
	config   *Config
	ruleSets map[string]*CompiledRuleSet
	logger   logger.Logger
}

func NewHandler(config *Config, ruleSets map[string]*CompiledRuleSet, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		ruleSets: ruleSets,
		logger:   log.WithFields(map[string]interface{}{"operation": Name}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input", "input cannot be nil")
	}
	if input.ApplicationID == "" {
		return nil, errors.NewInvalidInputError("applicationId", "applicationId is required")
	}
	if len(input.Content) == 0 {
		return nil, errors.NewInvalidInputError("content", "application content is required")
	}

	ruleSetID := input.RuleSetID
	if ruleSetID == "" {
		ruleSetID = h.config.DefaultRuleSetID
	}
	ruleSet, ok := h.ruleSets[ruleSetID]
	if !ok {
		return nil, errors.NewRuleSetNotFoundError(ruleSetID)
	}

	checks := make([]models.ComplianceCheck, 0, len(ruleSet.Set.Rules))
	var critical []models.ComplianceCheck
	var recommendations []string

	for _, rule := range ruleSet.Set.Rules {
		status, details := ruleSet.evaluate(&rule.Predicate, input.Content)

		check := models.ComplianceCheck{
			RuleID:   rule.ID,
			Rule:     rule.Rule,
			Category: rule.Category,
			Severity: rule.Severity,
			Status:   status,
			Details:  details,
		}
		if status != models.StatusCompliant {
			check.FixSuggestion = rule.FixSuggestion
			if rule.FixSuggestion != "" {
				recommendations = appendUnique(recommendations, rule.FixSuggestion)
			}
			if rule.Severity == models.SeverityCritical {
				critical = append(critical, check)
			}
		}
		checks = append(checks, check)
	}

	metadata := models.NewMetadata()
	metadata[models.MetaKeyRuleSetID] = ruleSetID

	result := &Output{
		ApplicationID:    input.ApplicationID,
		OverallCompliant: len(critical) == 0,
		Checks:           checks,
		CriticalIssues:   critical,
		Recommendations:  recommendations,
		CheckedAt:        time.Now().UTC(),
		Metadata:         metadata,
	}

	h.logger.Info("compliance validation complete", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"ruleSetId":      ruleSetID,
		"compliant":      result.OverallCompliant,
		"criticalIssues": len(critical),
	})
	return result, nil
}

// evaluate interprets one predicate against the application content. For
// all_of, a mix of satisfied and unsatisfied sub-conditions yields partial,
// which counts as non-compliant for the overall verdict.
func (rs *CompiledRuleSet) evaluate(p *models.Predicate, content map[string]interface{}) (models.ComplianceStatus, string) {
	switch p.Kind {
	case models.PredicateAllOf:
		satisfied := 0
		var firstFailure string
		for i := range p.Conditions {
			status, details := rs.evaluate(&p.Conditions[i], content)
			if status == models.StatusCompliant {
				satisfied++
			} else if firstFailure == "" {
				firstFailure = details
			}
		}
		switch {
		case satisfied == len(p.Conditions):
			return models.StatusCompliant, fmt.Sprintf("all %d conditions satisfied", len(p.Conditions))
		case satisfied == 0:
			return models.StatusNonCompliant, firstFailure
		default:
			return models.StatusPartial,
				fmt.Sprintf("%d of %d conditions satisfied; first failure: %s", satisfied, len(p.Conditions), firstFailure)
		}

	case models.PredicatePresence:
		if _, ok := lookupField(content, p.Field); !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is missing", p.Field)
		}
		return models.StatusCompliant, fmt.Sprintf("field %s is present", p.Field)

	case models.PredicateAbsence:
		if _, ok := lookupField(content, p.Field); ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s must not be present", p.Field)
		}
		return models.StatusCompliant, fmt.Sprintf("field %s is absent", p.Field)

	case models.PredicatePattern:
		value, ok := lookupField(content, p.Field)
		if !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is missing", p.Field)
		}
		text, ok := value.(string)
		if !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is not text", p.Field)
		}
		if !rs.patterns[p.Pattern].MatchString(text) {
			return models.StatusNonCompliant, fmt.Sprintf("field %s does not match the required pattern", p.Field)
		}
		return models.StatusCompliant, fmt.Sprintf("field %s matches the required pattern", p.Field)

	case models.PredicateNumericBand:
		value, ok := lookupField(content, p.Field)
		if !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is missing", p.Field)
		}
		number, ok := toNumber(value)
		if !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is not numeric", p.Field)
		}
		if p.Min != nil && number < *p.Min {
			return models.StatusNonCompliant, fmt.Sprintf("field %s value %g is below the minimum %g", p.Field, number, *p.Min)
		}
		if p.Max != nil && number > *p.Max {
			return models.StatusNonCompliant, fmt.Sprintf("field %s value %g is above the maximum %g", p.Field, number, *p.Max)
		}
		return models.StatusCompliant, fmt.Sprintf("field %s value %g is within bounds", p.Field, number)

	case models.PredicateLengthBand:
		value, ok := lookupField(content, p.Field)
		if !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is missing", p.Field)
		}
		text, ok := value.(string)
		if !ok {
			return models.StatusNonCompliant, fmt.Sprintf("field %s is not text", p.Field)
		}
		if p.MinLength != nil && len(text) < *p.MinLength {
			return models.StatusNonCompliant, fmt.Sprintf("field %s has %d characters, minimum is %d", p.Field, len(text), *p.MinLength)
		}
		if p.MaxLength != nil && len(text) > *p.MaxLength {
			return models.StatusNonCompliant, fmt.Sprintf("field %s has %d characters, maximum is %d", p.Field, len(text), *p.MaxLength)
		}
		return models.StatusCompliant, fmt.Sprintf("field %s length is within bounds", p.Field)

	default:
		return models.StatusNonCompliant, fmt.Sprintf("unknown predicate kind %q", p.Kind)
	}
}

// lookupField resolves a dot-separated path through nested content objects.
// Empty strings and nils count as absent.
func lookupField(content map[string]interface{}, path string) (interface{}, bool) {
	current := interface{}(content)
	for {
		key, rest, more := cutPath(path)
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok := obj[key]
		if !ok || value == nil {
			return nil, false
		}
		if !more {
			if s, isString := value.(string); isString && s == "" {
				return nil, false
			}
			return value, true
		}
		current = value
		path = rest
	}
}

func cutPath(path string) (key, rest string, more bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return path, "", false
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
