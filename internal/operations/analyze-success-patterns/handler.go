// Package analyzesuccesspatterns mines historical application outcomes for
// traits that separate funded from rejected applications. Results from thin
// samples are reported, but their confidence is capped and flagged.
package analyzesuccesspatterns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/confidence"
	"grant-engine/internal/corpus"
	"grant-engine/internal/models"
)

const (
	Name = "analyze_success_patterns"
)

var patternNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("success-patterns"))

// Trait markers looked for in application summaries. A marker becomes a
// pattern when it occurs clearly more often among funded applications than
// among rejected ones.
var markerCatalog = []struct {
	cues        []string
	title       string
	description string
	tip         string
}{
	{
		cues:        []string{"quantified", "measurable", "kpi", "%"},
		title:       "Quantified impact targets",
		description: "Funded applications state measurable targets instead of general ambitions.",
		tip:         "State concrete, measurable targets for each project objective.",
	},
	{
		cues:        []string{"partner", "consortium", "collaboration"},
		title:       "Named partnerships",
		description: "Funded applications name their partners and each partner's role.",
		tip:         "Name every partner and describe its contribution.",
	},
	{
		cues:        []string{"budget breakdown", "cost breakdown", "itemized"},
		title:       "Detailed budget breakdown",
		description: "Funded applications itemize costs rather than quoting one total.",
		tip:         "Break the budget down per work package and cost category.",
	},
	{
		cues:        []string{"milestone", "timeline", "work plan"},
		title:       "Clear milestones",
		description: "Funded applications lay out a dated milestone plan.",
		tip:         "Attach a milestone plan with dates and responsible parties.",
	},
	{
		cues:        []string{"evidence", "needs analysis", "baseline data"},
		title:       "Evidence-backed needs analysis",
		description: "Funded applications ground the problem statement in data.",
		tip:         "Support the problem statement with baseline data or studies.",
	},
	{
		cues:        []string{"stakeholder", "community", "beneficiaries"},
		title:       "Stakeholder engagement",
		description: "Funded applications show how beneficiaries were involved in the design.",
		tip:         "Describe how beneficiaries shaped the project design.",
	},
}

// Resolver is satisfied by corpus.Resolver.
type Resolver interface {
	Resolve(ref string) (corpus.Provider, error)
}

type Handler struct {
	config   *Config
	resolver Resolver
	logger   logger.Logger
}

func NewHandler(config *Config, resolver Resolver, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		resolver: resolver,
		logger:   log.WithFields(map[string]interface{}{"operation": Name}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input", "input cannot be nil")
	}
	if input.GrantType == "" {
		return nil, errors.NewInvalidInputError("grantType", "grantType is required")
	}

	ref := input.CorpusReference
	if ref == "" {
		ref = h.config.DefaultCorpusRef
	}
	provider, err := h.resolver.Resolve(ref)
	if err != nil {
		return nil, errors.NewInvalidInputError("corpusReference", err.Error())
	}

	outcomes, err := provider.FetchOutcomes(ctx, corpus.Query{
		GrantType:        input.GrantType,
		OrganizationType: input.OrganizationType,
	})
	if err != nil {
		return nil, err
	}

	scope := input.OrganizationType
	if scope == "" {
		scope = "all"
	}

	metadata := models.NewMetadata()
	metadata[models.MetaKeySampleSize] = fmt.Sprintf("%d", len(outcomes))

	result := &Output{
		GrantType:  input.GrantType,
		Scope:      scope,
		SampleSize: len(outcomes),
		AnalyzedAt: time.Now().UTC(),
		Metadata:   metadata,
	}

	if len(outcomes) == 0 {
		result.Status = models.StatusEmpty
		return result, nil
	}

	result.Patterns = h.mine(input.GrantType, scope, outcomes)
	result.Confidence = confidence.FromSampleSize(len(outcomes), h.config.MinSampleSize)
	if len(outcomes) < h.config.MinSampleSize {
		metadata[models.MetaKeyLowSample] = "true"
	}

	if len(result.Patterns) == 0 {
		result.Status = models.StatusEmpty
	} else {
		result.Status = models.StatusOK
	}

	h.logger.Info("pattern analysis complete", map[string]interface{}{
		"grantType":  input.GrantType,
		"scope":      scope,
		"sampleSize": len(outcomes),
		"patterns":   len(result.Patterns),
	})
	return result, nil
}

func (h *Handler) mine(grantType, scope string, outcomes []models.ApplicationOutcome) []models.SuccessPattern {
	var funded, rejected []models.ApplicationOutcome
	for _, o := range outcomes {
		if o.Outcome == models.OutcomeFunded {
			funded = append(funded, o)
		} else {
			rejected = append(rejected, o)
		}
	}
	if len(funded) == 0 {
		return nil
	}

	var patterns []models.SuccessPattern
	for _, marker := range markerCatalog {
		fundedHits := withMarker(funded, marker.cues)
		if len(fundedHits) < h.config.MinMarkerOccurrence {
			continue
		}

		fundedFreq := float64(len(fundedHits)) / float64(len(funded))
		rejectedFreq := 0.0
		if len(rejected) > 0 {
			rejectedFreq = float64(len(withMarker(rejected, marker.cues))) / float64(len(rejected))
		}
		differential := fundedFreq - rejectedFreq
		if differential <= 0 {
			continue
		}

		patterns = append(patterns, models.SuccessPattern{
			ID:               uuid.NewSHA1(patternNamespace, []byte(grantType+"|"+scope+"|"+marker.title)).String(),
			GrantType:        grantType,
			OrganizationType: models.OrgType(scopeOrgType(scope)),
			Title:            marker.title,
			Description:      marker.description,
			Frequency:        fundedFreq,
			Impact:           impact(differential, fundedHits, funded),
			Examples:         examples(fundedHits),
			Applicability:    []string{grantType + "/" + scope},
			Tips:             []string{marker.tip},
		})
	}
	return patterns
}

// impact maps the funded/rejected frequency differential onto the 1-10 scale,
// with one bonus point when marked applications also scored higher.
func impact(differential float64, hits, funded []models.ApplicationOutcome) int {
	if differential > 1 {
		differential = 1
	}
	value := int(1 + differential*8 + 0.5)

	if avg, ok := averageScore(hits); ok {
		if all, allOK := averageScore(funded); allOK && avg > all {
			value++
		}
	}
	if value > 10 {
		value = 10
	}
	return value
}

func examples(hits []models.ApplicationOutcome) []models.PatternExample {
	limit := 2
	if len(hits) < limit {
		limit = len(hits)
	}
	out := make([]models.PatternExample, 0, limit)
	for _, o := range hits[:limit] {
		out = append(out, models.PatternExample{
			Excerpt: o.Summary,
			Outcome: o.Outcome,
			Score:   o.Score,
		})
	}
	return out
}

func withMarker(outcomes []models.ApplicationOutcome, cues []string) []models.ApplicationOutcome {
	var hits []models.ApplicationOutcome
	for _, o := range outcomes {
		lower := strings.ToLower(o.Summary)
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				hits = append(hits, o)
				break
			}
		}
	}
	return hits
}

func averageScore(outcomes []models.ApplicationOutcome) (float64, bool) {
	var sum float64
	var n int
	for _, o := range outcomes {
		if o.Score != nil {
			sum += *o.Score
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func scopeOrgType(scope string) string {
	if scope == "all" {
		return ""
	}
	return scope
}
