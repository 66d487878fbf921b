// Package checkeligibility evaluates an organization profile against a set of
// eligibility criteria. Missing profile facts degrade the affected criterion
// to not-met with zero confidence instead of failing the whole check; only an
// absent identity or organization type rejects the profile outright.
package checkeligibility

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/confidence"
	"grant-engine/internal/models"
)

const (
	Name = "check_eligibility"
)

const (
	mandatoryWeight = 3.0
	standardWeight  = 1.0

	// Scores straddle 50 so that OverallEligible always implies a score
	// above it: an unmet mandatory criterion caps the score, a fully met
	// mandatory set floors it.
	ineligibleCap = 50.0
	eligibleFloor = 55.0
)

var minYearsPattern = regexp.MustCompile(`(\d+)\s*\+?\s*years?`)
var maxEmployeesPattern = regexp.MustCompile(`(?:fewer than|under|at most|up to)\s*(\d+)\s*employees`)
var minAmountPattern = regexp.MustCompile(`(?:at least|minimum(?: of)?|over|above|more than)\s*[€$£]?\s*([\d][\d,]*)`)
var maxAmountPattern = regexp.MustCompile(`(?:under|below|less than|at most|not exceed(?:ing)?)\s*[€$£]?\s*([\d][\d,]*)`)

type evaluation struct {
	meets      bool
	confidence float64
	reasoning  string
	evidence   []string
	// missingField is set when the profile lacks the fact this criterion
	// needs, which forces meets=false and confidence=0.
	missingField string
}

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"operation": Name}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input", "input cannot be nil")
	}
	if input.Organization.ID == "" {
		return nil, errors.NewIncompleteProfileError("id")
	}
	if input.Organization.Type == "" {
		return nil, errors.NewIncompleteProfileError("orgType")
	}
	if len(input.Criteria) == 0 {
		return nil, errors.NewInvalidInputError("criteria", "at least one eligibility criterion is required")
	}

	org := &input.Organization
	breakdown := make([]models.CriterionResult, 0, len(input.Criteria))
	var weightedSum, weightTotal float64
	mandatoryUnmet := false

	var missing, strengths, weaknesses, recommendations []string

	for _, crit := range input.Criteria {
		ev := h.evaluate(org, &crit)

		result := models.CriterionResult{
			Criterion:        crit,
			Meets:            ev.meets,
			Confidence:       ev.confidence,
			Reasoning:        ev.reasoning,
			RequiredEvidence: ev.evidence,
		}
		breakdown = append(breakdown, result)

		weight := standardWeight
		if crit.Mandatory {
			weight = mandatoryWeight
		}
		weightTotal += weight
		if ev.meets {
			weightedSum += weight * 100
		} else if crit.Mandatory {
			mandatoryUnmet = true
		}

		switch {
		case ev.missingField != "":
			recommendations = appendUnique(recommendations,
				fmt.Sprintf("Provide %s in the organization profile", ev.missingField))
			weaknesses = appendUnique(weaknesses, crit.Criterion)
			// MissingRequirements lists unmet mandatory criteria only;
			// optional gaps stay in weaknesses and recommendations.
			if crit.Mandatory {
				missing = appendUnique(missing, crit.Criterion)
			}
		case !ev.meets:
			recommendations = appendUnique(recommendations, "Address: "+crit.Criterion)
			weaknesses = appendUnique(weaknesses, crit.Criterion)
			if crit.Mandatory {
				missing = appendUnique(missing, crit.Criterion)
			}
		case ev.confidence >= 80:
			strengths = appendUnique(strengths, crit.Criterion)
		case ev.confidence < 50:
			weaknesses = appendUnique(weaknesses, crit.Criterion)
		}
	}

	score := weightedSum / weightTotal
	if mandatoryUnmet && score > ineligibleCap {
		score = ineligibleCap
	}
	if !mandatoryUnmet && score < eligibleFloor {
		score = eligibleFloor
	}

	check := &Output{
		OrganizationID:      org.ID,
		OverallEligible:     !mandatoryUnmet,
		EligibilityScore:    score,
		Breakdown:           breakdown,
		Recommendations:     recommendations,
		MissingRequirements: missing,
		Strengths:           strengths,
		Weaknesses:          weaknesses,
		CheckedAt:           time.Now().UTC(),
		Metadata:            models.NewMetadata(),
	}

	h.logger.Info("eligibility check complete", map[string]interface{}{
		"organizationId": org.ID,
		"eligible":       check.OverallEligible,
		"score":          check.EligibilityScore,
	})
	return check, nil
}

func (h *Handler) evaluate(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	switch crit.Kind {
	case models.CriterionLocation:
		return evalLocation(org, crit)
	case models.CriterionSize:
		return evalSize(org, crit)
	case models.CriterionSector:
		return evalSector(org, crit)
	case models.CriterionLegal:
		return evalLegal(org, crit)
	case models.CriterionFinancial:
		return evalFinancial(org, crit)
	case models.CriterionExperience:
		return evalExperience(org, crit)
	default:
		return evaluation{
			meets:      false,
			confidence: 0,
			reasoning:  fmt.Sprintf("criterion kind %q is not evaluable", crit.Kind),
		}
	}
}

func evalLocation(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	if org.Location.Country == "" {
		return missingField("location.country")
	}
	lower := criterionText(crit)
	if strings.Contains(lower, strings.ToLower(org.Location.Country)) ||
		(org.Location.Region != "" && strings.Contains(lower, strings.ToLower(org.Location.Region))) {
		return evaluation{
			meets:      true,
			confidence: confidence.FromMatchExactness(0.9),
			reasoning:  fmt.Sprintf("organization location %s matches the criterion", org.Location.Country),
			evidence:   []string{"proof of registered address"},
		}
	}
	return evaluation{
		meets:      false,
		confidence: confidence.FromMatchExactness(0.6),
		reasoning:  fmt.Sprintf("location %s does not match the required area", org.Location.Country),
	}
}

func evalSize(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	lower := criterionText(crit)

	if m := maxEmployeesPattern.FindStringSubmatch(lower); m != nil {
		if org.Financials.EmployeeCount == nil {
			return missingField("financials.employeeCount")
		}
		bound, _ := strconv.Atoi(m[1])
		meets := *org.Financials.EmployeeCount < bound
		return evaluation{
			meets:      meets,
			confidence: confidence.FromMatchExactness(0.95),
			reasoning:  fmt.Sprintf("%d employees against a bound of %d", *org.Financials.EmployeeCount, bound),
			evidence:   []string{"headcount and size declaration"},
		}
	}

	if org.Size == "" {
		return missingField("size")
	}
	if strings.Contains(lower, string(org.Size)) ||
		(isSMEBand(org.Size) && (strings.Contains(lower, "sme") || strings.Contains(lower, "small and medium"))) {
		return evaluation{
			meets:      true,
			confidence: confidence.FromMatchExactness(0.85),
			reasoning:  fmt.Sprintf("organization size %s fits the criterion", org.Size),
			evidence:   []string{"headcount and size declaration"},
		}
	}
	return evaluation{
		meets:      false,
		confidence: confidence.FromMatchExactness(0.6),
		reasoning:  fmt.Sprintf("organization size %s does not fit the criterion", org.Size),
	}
}

func evalSector(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	if len(org.Sectors) == 0 {
		return missingField("sectors")
	}
	lower := criterionText(crit)
	for _, sector := range org.Sectors {
		if strings.Contains(lower, strings.ToLower(sector)) {
			return evaluation{
				meets:      true,
				confidence: confidence.FromMatchExactness(0.9),
				reasoning:  fmt.Sprintf("sector %s matches the criterion", sector),
				evidence:   []string{"sector classification documents"},
			}
		}
	}
	return evaluation{
		meets:      false,
		confidence: confidence.FromMatchExactness(0.7),
		reasoning:  "none of the declared sectors match the criterion",
	}
}

func evalLegal(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	lower := criterionText(crit)
	if strings.Contains(lower, string(org.Type)) {
		return evaluation{
			meets:      true,
			confidence: confidence.FromMatchExactness(0.9),
			reasoning:  fmt.Sprintf("organization type %s satisfies the criterion", org.Type),
			evidence:   []string{"registration and incorporation documents"},
		}
	}
	if org.Financials.LegalForm == "" {
		return missingField("financials.legalForm")
	}
	if strings.Contains(lower, strings.ToLower(org.Financials.LegalForm)) {
		return evaluation{
			meets:      true,
			confidence: confidence.FromMatchExactness(0.85),
			reasoning:  fmt.Sprintf("legal form %s satisfies the criterion", org.Financials.LegalForm),
			evidence:   []string{"registration and incorporation documents"},
		}
	}
	return evaluation{
		meets:      false,
		confidence: confidence.FromMatchExactness(0.6),
		reasoning:  fmt.Sprintf("neither type %s nor legal form %s satisfies the criterion", org.Type, org.Financials.LegalForm),
	}
}

func evalFinancial(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	if org.Financials.AnnualRevenue == nil {
		return missingField("financials.annualRevenue")
	}
	revenue := *org.Financials.AnnualRevenue
	lower := criterionText(crit)

	if m := minAmountPattern.FindStringSubmatch(lower); m != nil {
		bound := parseAmount(m[1])
		return boundEvaluation(revenue >= bound, revenue, bound, "minimum")
	}
	if m := maxAmountPattern.FindStringSubmatch(lower); m != nil {
		bound := parseAmount(m[1])
		return boundEvaluation(revenue <= bound, revenue, bound, "maximum")
	}
	return evaluation{
		meets:      revenue > 0,
		confidence: confidence.FromMatchExactness(0.5),
		reasoning:  "no numeric bound found, checked that revenue is reported",
		evidence:   []string{"audited financial statements"},
	}
}

func evalExperience(org *models.OrganizationProfile, crit *models.EligibilityCriterion) evaluation {
	lower := criterionText(crit)
	if m := minYearsPattern.FindStringSubmatch(lower); m != nil {
		minYears, _ := strconv.Atoi(m[1])
		meets := org.Experience.YearsActive >= minYears
		return evaluation{
			meets:      meets,
			confidence: confidence.FromMatchExactness(0.95),
			reasoning:  fmt.Sprintf("%d years active against a minimum of %d", org.Experience.YearsActive, minYears),
			evidence:   []string{"track record documentation"},
		}
	}
	meets := org.Experience.YearsActive > 0 || org.Experience.PriorGrants > 0
	return evaluation{
		meets:      meets,
		confidence: confidence.FromMatchExactness(0.5),
		reasoning:  fmt.Sprintf("%d years active, %d prior grants", org.Experience.YearsActive, org.Experience.PriorGrants),
		evidence:   []string{"track record documentation"},
	}
}

func boundEvaluation(meets bool, value, bound float64, direction string) evaluation {
	return evaluation{
		meets:      meets,
		confidence: confidence.FromMatchExactness(0.95),
		reasoning:  fmt.Sprintf("annual revenue %.0f against a %s of %.0f", value, direction, bound),
		evidence:   []string{"audited financial statements"},
	}
}

func missingField(field string) evaluation {
	return evaluation{
		meets:        false,
		confidence:   0,
		reasoning:    fmt.Sprintf("cannot evaluate: profile is missing %s", field),
		missingField: field,
	}
}

// criterionText joins the criterion with its conditions for matching, so
// bounds extracted at analysis time stay visible here.
func criterionText(crit *models.EligibilityCriterion) string {
	parts := append([]string{crit.Criterion}, crit.Conditions...)
	return strings.ToLower(strings.Join(parts, " "))
}

func isSMEBand(size models.OrgSize) bool {
	return size == models.SizeMicro || size == models.SizeSmall || size == models.SizeMedium
}

func parseAmount(raw string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	return v
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
