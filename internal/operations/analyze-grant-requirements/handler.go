// Package analyzegrantrequirements extracts structured requirements and
// eligibility criteria from raw grant call text. The basic pass is purely
// lexical; the deep pass adds implied requirements, from the text backend
// when one is configured, and always reports lower confidence than the basic
// pass on the same text.
package analyzegrantrequirements

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"grant-engine/internal/backend"
	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/confidence"
	"grant-engine/internal/models"
)

const (
	Name = "analyze_grant_requirements"
)

// Deterministic IDs: the same grant text always yields the same requirement
// IDs, so re-analysis never churns identifiers downstream.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("grant-requirements"))

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)
var conditionPattern = regexp.MustCompile(`\d+\+?\s*(?:years?|months?|employees?|%)`)

var mandatoryMarkers = []string{"must", "shall", "required", "mandatory", "are obligated"}
var preferredMarkers = []string{"preferred", "preference", "desirable", "priority", "prioritized", "ideally"}
var optionalMarkers = []string{"may ", "optional", "encouraged", "can also"}

// Category vote tables. Ties break in declaration order.
var categoryLexicon = []struct {
	category models.RequirementCategory
	keywords []string
}{
	{models.CategoryFinancial, []string{"financial", "audited", "budget", "revenue", "turnover", "co-financing", "cost", "funding plan"}},
	{models.CategoryLegal, []string{"registered", "incorporated", "legal", "compliance", "law", "tax", "statute"}},
	{models.CategoryOrganizational, []string{"nonprofit", "organization", "staff", "operating history", "years of operation", "governance", "team", "board"}},
	{models.CategoryTechnical, []string{"technical", "technology", "infrastructure", "methodology", "data", "system", "capacity"}},
	{models.CategoryProject, []string{"project", "proposal", "work plan", "milestone", "deliverable", "activities", "timeline"}},
}

var criterionLexicon = []struct {
	kind     models.CriterionKind
	keywords []string
}{
	{models.CriterionLocation, []string{"located", "based in", "country", "countries", "region", "member state"}},
	{models.CriterionSize, []string{"employees", "sme", "fewer than", "small and medium", "headcount"}},
	{models.CriterionSector, []string{"sector", "industry", "field of"}},
	{models.CriterionLegal, []string{"registered", "incorporated", "legal entity", "nonprofit status", "charitable status"}},
	{models.CriterionFinancial, []string{"revenue", "turnover", "annual budget", "co-financing", "financial capacity"}},
	{models.CriterionExperience, []string{"years", "experience", "track record", "previous", "prior grants"}},
}

var eligibilityCues = []string{"eligible", "eligibility", "open to", "restricted to", "applicants must", "applicants should", "applications are accepted from"}

var verificationMethods = map[models.CriterionKind]string{
	models.CriterionLocation:   "proof of registered address",
	models.CriterionSize:       "headcount and size declaration",
	models.CriterionSector:     "sector classification documents",
	models.CriterionLegal:      "registration and incorporation documents",
	models.CriterionFinancial:  "audited financial statements",
	models.CriterionExperience: "track record documentation",
}

// Implied requirements the deep pass adds when a cue appears in the text and
// no explicit requirement already covers it.
var inferenceLexicon = []struct {
	cue         string
	description string
	kind        models.RequirementKind
	category    models.RequirementCategory
}{
	{"report", "Provide progress and financial reports during the grant period", models.RequirementPreferred, models.CategoryProject},
	{"partner", "Formalize partner commitments in written agreements", models.RequirementPreferred, models.CategoryOrganizational},
	{"audit", "Maintain accounting records ready for external audit", models.RequirementPreferred, models.CategoryFinancial},
	{"co-financing", "Secure the co-financing share before the project starts", models.RequirementMandatory, models.CategoryFinancial},
	{"data", "Prepare a data management plan for collected project data", models.RequirementOptional, models.CategoryTechnical},
}

type Handler struct {
	config  *Config
	backend *backend.Client
	logger  logger.Logger
}

func NewHandler(config *Config, backendClient *backend.Client, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		backend: backendClient,
		logger:  log.WithFields(map[string]interface{}{"operation": Name}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input", "input cannot be nil")
	}
	if input.GrantID == "" {
		return nil, errors.NewInvalidInputError("grantId", "grantId is required")
	}
	if len(strings.TrimSpace(input.GrantText)) < h.config.MinTextLength {
		return nil, errors.NewInvalidInputError("grantText",
			fmt.Sprintf("grantText must be at least %d characters", h.config.MinTextLength))
	}

	depth := models.AnalysisDepth(input.AnalysisDepth)
	if depth == "" {
		depth = models.DepthBasic
	}
	if depth != models.DepthBasic && depth != models.DepthDeep {
		return nil, errors.NewInvalidInputError("analysisDepth",
			fmt.Sprintf("unknown analysis depth %q", input.AnalysisDepth))
	}

	requirements, criteria := h.extract(input.GrantID, input.GrantText)

	// Confidence rests on the explicit findings only. The deep pass then
	// discounts that score: inferred requirements never raise confidence.
	score := h.score(requirements, criteria)

	metadata := models.NewMetadata()
	metadata[models.MetaKeyDepth] = string(depth)

	if depth == models.DepthDeep {
		inferred, backendUsed := h.inferImplicit(ctx, input.GrantID, input.GrantText, requirements)
		requirements = append(requirements, inferred...)
		metadata[models.MetaKeyInferredCount] = fmt.Sprintf("%d", len(inferred))
		metadata[models.MetaKeyBackendUsed] = fmt.Sprintf("%t", backendUsed)
		if score == 0 && len(inferred) > 0 {
			score = 15
		}
		score = confidence.ApplyInferencePenalty(score)
	}

	result := &Output{
		GrantID:             input.GrantID,
		Requirements:        requirements,
		EligibilityCriteria: criteria,
		AnalysisDate:        time.Now().UTC(),
		Status:              models.StatusOK,
		Metadata:            metadata,
	}

	if len(requirements) == 0 && len(criteria) == 0 {
		result.Status = models.StatusEmpty
		result.Confidence = 0
		h.logger.Info("no requirements found", map[string]interface{}{"grantId": input.GrantID})
		return result, nil
	}

	result.Confidence = score

	h.logger.Info("analysis complete", map[string]interface{}{
		"grantId":      input.GrantID,
		"requirements": len(requirements),
		"criteria":     len(criteria),
		"depth":        string(depth),
	})
	return result, nil
}

func (h *Handler) extract(grantID, text string) ([]models.GrantRequirement, []models.EligibilityCriterion) {
	var requirements []models.GrantRequirement
	var criteria []models.EligibilityCriterion

	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)

		kind, found := detectKind(lower)
		if found {
			for _, clause := range splitClauses(sentence) {
				requirements = append(requirements, buildRequirement(grantID, clause, kind))
			}
		}

		if isEligibilitySentence(lower) {
			criteria = append(criteria, buildCriterion(grantID, sentence, kind == models.RequirementMandatory))
		}
	}
	return requirements, criteria
}

func (h *Handler) score(reqs []models.GrantRequirement, crits []models.EligibilityCriterion) float64 {
	total := len(reqs) + len(crits)
	if total == 0 {
		return 0
	}

	var exactnessSum float64
	for _, r := range reqs {
		exactnessSum += kindExactness(r.Kind)
	}
	for range crits {
		exactnessSum += 0.8
	}

	score := confidence.Combine(
		confidence.FromExcerptCount(total),
		confidence.FromMatchExactness(exactnessSum/float64(total)),
	)
	// Any explicit finding carries at least minimal confidence, which also
	// keeps the deep-pass discount strict.
	if score < 15 {
		score = 15
	}
	return score
}

// inferImplicit adds requirements the text implies without stating. The
// backend result wins when available; backend failure degrades softly to the
// local inference table.
func (h *Handler) inferImplicit(ctx context.Context, grantID, text string, existing []models.GrantRequirement) ([]models.GrantRequirement, bool) {
	if h.backend != nil && h.backend.Enabled() {
		resp, err := h.backend.Annotate(ctx, &backend.AnnotateRequest{Text: text, Focus: "requirements"})
		if err == nil {
			return h.fromAnnotations(grantID, resp.Annotations, existing), true
		}
		h.logger.Warn("backend inference failed, using local table", map[string]interface{}{
			"grantId": grantID,
			"error":   err.Error(),
		})
	}

	lower := strings.ToLower(text)
	var inferred []models.GrantRequirement
	for _, entry := range inferenceLexicon {
		if !strings.Contains(lower, entry.cue) {
			continue
		}
		if coveredByExisting(entry.description, append(existing, inferred...)) {
			continue
		}
		inferred = append(inferred, models.GrantRequirement{
			ID:          requirementID(grantID, entry.description),
			Description: entry.description,
			Kind:        entry.kind,
			Category:    entry.category,
			// The cue sentence is the evidence the inference rests on.
			SourceExcerpt: cueExcerpt(text, entry.cue),
			Importance:    baseImportance(entry.kind),
		})
	}
	return inferred, false
}

// cueExcerpt returns the first sentence containing the cue. The caller only
// infers after matching the cue against the whole text, so a sentence always
// exists.
func cueExcerpt(text, cue string) string {
	for _, sentence := range splitSentences(text) {
		if strings.Contains(strings.ToLower(sentence), cue) {
			return sentence
		}
	}
	return text
}

func (h *Handler) fromAnnotations(grantID string, annotations []backend.Annotation, existing []models.GrantRequirement) []models.GrantRequirement {
	var inferred []models.GrantRequirement
	for _, a := range annotations {
		if a.Excerpt == "" || coveredByExisting(a.Excerpt, append(existing, inferred...)) {
			continue
		}
		kind := parseKind(a.Label)
		inferred = append(inferred, models.GrantRequirement{
			ID:            requirementID(grantID, a.Excerpt),
			Description:   a.Excerpt,
			Kind:          kind,
			Category:      parseCategory(a.Category),
			SourceExcerpt: a.Excerpt,
			Importance:    baseImportance(kind),
		})
	}
	return inferred
}

func splitSentences(text string) []string {
	var sentences []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitClauses breaks a sentence into independently classifiable clauses, so
// one sentence can yield requirements in different categories.
func splitClauses(sentence string) []string {
	parts := []string{sentence}
	for _, sep := range []string{";", " and "} {
		var next []string
		for _, p := range parts {
			for _, piece := range strings.Split(p, sep) {
				if piece = strings.TrimSpace(piece); piece != "" {
					next = append(next, piece)
				}
			}
		}
		parts = next
	}
	return parts
}

func detectKind(lower string) (models.RequirementKind, bool) {
	for _, m := range mandatoryMarkers {
		if strings.Contains(lower, m) {
			return models.RequirementMandatory, true
		}
	}
	for _, m := range preferredMarkers {
		if strings.Contains(lower, m) {
			return models.RequirementPreferred, true
		}
	}
	for _, m := range optionalMarkers {
		if strings.Contains(lower, m) {
			return models.RequirementOptional, true
		}
	}
	return "", false
}

func categorize(clause string) models.RequirementCategory {
	lower := strings.ToLower(clause)
	best := models.CategoryProject
	bestVotes := 0
	for _, entry := range categoryLexicon {
		votes := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				votes++
			}
		}
		if votes > bestVotes {
			best = entry.category
			bestVotes = votes
		}
	}
	return best
}

func criterionKind(sentence string) models.CriterionKind {
	lower := strings.ToLower(sentence)
	best := models.CriterionLegal
	bestVotes := 0
	for _, entry := range criterionLexicon {
		votes := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				votes++
			}
		}
		if votes > bestVotes {
			best = entry.kind
			bestVotes = votes
		}
	}
	return best
}

func isEligibilitySentence(lower string) bool {
	for _, cue := range eligibilityCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func buildRequirement(grantID, clause string, kind models.RequirementKind) models.GrantRequirement {
	importance := baseImportance(kind)
	lower := strings.ToLower(clause)
	for _, strong := range []string{"must", "shall", "critical", "essential"} {
		if strings.Contains(lower, strong) {
			importance++
			break
		}
	}
	if importance > 10 {
		importance = 10
	}

	return models.GrantRequirement{
		ID:            requirementID(grantID, clause),
		Description:   clause,
		Kind:          kind,
		Category:      categorize(clause),
		SourceExcerpt: clause,
		Importance:    importance,
	}
}

func buildCriterion(grantID, sentence string, mandatory bool) models.EligibilityCriterion {
	kind := criterionKind(sentence)
	return models.EligibilityCriterion{
		ID:                 requirementID(grantID, "criterion|"+sentence),
		Criterion:          sentence,
		Kind:               kind,
		Mandatory:          mandatory,
		Conditions:         conditionPattern.FindAllString(sentence, -1),
		VerificationMethod: verificationMethods[kind],
		SourceExcerpt:      sentence,
	}
}

func requirementID(grantID, seed string) string {
	return uuid.NewSHA1(idNamespace, []byte(grantID+"|"+seed)).String()
}

func baseImportance(kind models.RequirementKind) int {
	switch kind {
	case models.RequirementMandatory:
		return 8
	case models.RequirementPreferred:
		return 6
	default:
		return 4
	}
}

func kindExactness(kind models.RequirementKind) float64 {
	switch kind {
	case models.RequirementMandatory:
		return 0.9
	case models.RequirementPreferred:
		return 0.7
	default:
		return 0.5
	}
}

func parseKind(label string) models.RequirementKind {
	switch models.RequirementKind(strings.ToLower(label)) {
	case models.RequirementMandatory:
		return models.RequirementMandatory
	case models.RequirementPreferred:
		return models.RequirementPreferred
	default:
		return models.RequirementOptional
	}
}

func parseCategory(category string) models.RequirementCategory {
	c := models.RequirementCategory(strings.ToLower(category))
	switch c {
	case models.CategoryFinancial, models.CategoryTechnical, models.CategoryLegal, models.CategoryOrganizational, models.CategoryProject:
		return c
	default:
		return models.CategoryProject
	}
}

func coveredByExisting(description string, existing []models.GrantRequirement) bool {
	lower := strings.ToLower(description)
	for _, r := range existing {
		if strings.Contains(strings.ToLower(r.Description), lower) || strings.Contains(lower, strings.ToLower(r.Description)) {
			return true
		}
	}
	return false
}
