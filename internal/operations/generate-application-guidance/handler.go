// Package generateapplicationguidance composes advisory application guidance
// from the most recent stored requirement analysis of a grant, blended with
// an organization-type template. It never re-analyzes grant text itself.
package generateapplicationguidance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/confidence"
	"grant-engine/internal/models"

	analyzegrantrequirements "grant-engine/internal/operations/analyze-grant-requirements"
)

const (
	Name = "generate_application_guidance"
)

// Guidance inherits the stored analysis confidence with a haircut: derived
// advice is never more certain than the analysis it came from.
const derivationDiscount = 0.9

var orgTypeTips = map[models.OrgType][]string{
	models.OrgNonprofit: {
		"Lead with your mission track record and community anchoring.",
		"Attach your most recent annual report and audited statements.",
	},
	models.OrgSME: {
		"Explain the commercial sustainability of the project after the grant ends.",
		"Show the funding split between the grant and your own contribution.",
	},
	models.OrgStartup: {
		"Address organizational stability: team, runway, and governance.",
		"Compensate for a short track record with founder and advisor credentials.",
	},
	models.OrgUniversity: {
		"Name the responsible chair or institute and its publication record.",
		"Clarify intellectual property arrangements up front.",
	},
	models.OrgResearch: {
		"Reference prior peer-reviewed work relevant to the call.",
		"Describe data management and reproducibility practices.",
	},
	models.OrgPublic: {
		"Document the political mandate or council decision backing the project.",
		"Show how the project continues after the funding period from public budgets.",
	},
}

// AnalysisStore is satisfied by store.Store.
type AnalysisStore interface {
	LoadLatestForGrant(ctx context.Context, operation, grantID string) ([]byte, error)
}

type Handler struct {
	config *Config
	store  AnalysisStore
	logger logger.Logger
}

func NewHandler(config *Config, analysisStore AnalysisStore, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  analysisStore,
		logger: log.WithFields(map[string]interface{}{"operation": Name}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input", "input cannot be nil")
	}
	if input.GrantID == "" {
		return nil, errors.NewInvalidInputError("grantId", "grantId is required")
	}
	orgType := models.OrgType(input.OrganizationType)
	if _, known := orgTypeTips[orgType]; !known {
		return nil, errors.NewInvalidInputError("organizationType",
			fmt.Sprintf("unknown organization type %q", input.OrganizationType))
	}

	raw, err := h.store.LoadLatestForGrant(ctx, analyzegrantrequirements.Name, input.GrantID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.NewAnalysisNotFoundError(input.GrantID)
	}

	var analysis models.GrantAnalysisResult
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, errors.NewStoreReadFailedError(fmt.Errorf("stored analysis for %s is unreadable: %w", input.GrantID, err))
	}

	sections, priorities := compose(&analysis, orgType)

	guidance := &Output{
		GrantID:          input.GrantID,
		OrganizationType: orgType,
		Sections:         sections,
		Priorities:       priorities,
		Confidence:       confidence.Cap(analysis.Confidence*derivationDiscount, 100),
		ComposedAt:       time.Now().UTC(),
		Metadata:         models.NewMetadata(),
	}

	h.logger.Info("guidance composed", map[string]interface{}{
		"grantId":          input.GrantID,
		"organizationType": string(orgType),
		"sections":         len(sections),
	})
	return guidance, nil
}

func compose(analysis *models.GrantAnalysisResult, orgType models.OrgType) ([]models.GuidanceSection, []string) {
	var sections []models.GuidanceSection
	var priorities []string

	mandatory := filterByKind(analysis.Requirements, models.RequirementMandatory)
	if len(mandatory) > 0 {
		sortByImportance(mandatory)
		sections = append(sections, models.GuidanceSection{
			Title:    "Mandatory requirements",
			Content:  bulletList(descriptions(mandatory)),
			Priority: 1,
		})
		for _, r := range mandatory {
			priorities = append(priorities, r.Description)
		}
	}

	if len(analysis.EligibilityCriteria) > 0 {
		var lines []string
		for _, c := range analysis.EligibilityCriteria {
			line := c.Criterion
			if c.VerificationMethod != "" {
				line += " (verify with: " + c.VerificationMethod + ")"
			}
			lines = append(lines, line)
		}
		sections = append(sections, models.GuidanceSection{
			Title:    "Eligibility checklist",
			Content:  bulletList(lines),
			Priority: 1,
		})
	}

	var optional []models.GrantRequirement
	optional = append(optional, filterByKind(analysis.Requirements, models.RequirementPreferred)...)
	optional = append(optional, filterByKind(analysis.Requirements, models.RequirementOptional)...)
	if len(optional) > 0 {
		sortByImportance(optional)
		sections = append(sections, models.GuidanceSection{
			Title:    "Strengthen your application",
			Content:  bulletList(descriptions(optional)),
			Priority: 2,
		})
	}

	sections = append(sections, models.GuidanceSection{
		Title:    fmt.Sprintf("Advice for %s applicants", orgType),
		Content:  bulletList(orgTypeTips[orgType]),
		Priority: 3,
	})

	return sections, priorities
}

func filterByKind(reqs []models.GrantRequirement, kind models.RequirementKind) []models.GrantRequirement {
	var out []models.GrantRequirement
	for _, r := range reqs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func sortByImportance(reqs []models.GrantRequirement) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].Importance > reqs[j].Importance
	})
}

func descriptions(reqs []models.GrantRequirement) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Description)
	}
	return out
}

func bulletList(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
