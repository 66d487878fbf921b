package analyzegrantrequirements

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"grant-engine/internal/backend"
	"grant-engine/internal/common/config"
	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eligibilityText = "Applicants must be registered nonprofits with 2+ years of operating history and submit audited financial statements."

func newTestHandler(t *testing.T, backendURL string) *Handler {
	client := backend.NewClient(&config.BackendConfig{
		BaseURL:               backendURL,
		MaxRetries:            0,
		MaxConcurrentRequests: 1,
	}, logger.NewTestLogger(t))
	return NewHandler(LoadConfig(), client, logger.NewTestLogger(t))
}

func TestExecute_SplitsCompoundSentenceIntoCategories(t *testing.T) {
	h := newTestHandler(t, "")

	out, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText})
	require.NoError(t, err)
	require.Len(t, out.Requirements, 2, "one compound sentence must yield two requirements")

	byCategory := map[models.RequirementCategory]models.GrantRequirement{}
	for _, r := range out.Requirements {
		assert.Equal(t, models.RequirementMandatory, r.Kind)
		assert.NotEmpty(t, r.SourceExcerpt)
		byCategory[r.Category] = r
	}
	assert.Contains(t, byCategory, models.CategoryOrganizational)
	assert.Contains(t, byCategory, models.CategoryFinancial)

	assert.Equal(t, models.StatusOK, out.Status)
	assert.Greater(t, out.Confidence, 0.0)
}

func TestExecute_ExtractsEligibilityCriterion(t *testing.T) {
	h := newTestHandler(t, "")

	out, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText})
	require.NoError(t, err)
	require.Len(t, out.EligibilityCriteria, 1)

	crit := out.EligibilityCriteria[0]
	assert.True(t, crit.Mandatory)
	assert.Contains(t, crit.Conditions, "2+ years")
	assert.NotEmpty(t, crit.VerificationMethod)
}

func TestExecute_DeterministicIDs(t *testing.T) {
	h := newTestHandler(t, "")

	first, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText})
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText})
	require.NoError(t, err)

	require.Equal(t, len(first.Requirements), len(second.Requirements))
	for i := range first.Requirements {
		assert.Equal(t, first.Requirements[i].ID, second.Requirements[i].ID)
	}

	other, err := h.Execute(context.Background(), &Input{GrantID: "grant-2", GrantText: eligibilityText})
	require.NoError(t, err)
	assert.NotEqual(t, first.Requirements[0].ID, other.Requirements[0].ID, "IDs are scoped to the grant")
}

func TestExecute_DeepReportsLowerConfidenceThanBasic(t *testing.T) {
	h := newTestHandler(t, "")

	basic, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText, AnalysisDepth: "basic"})
	require.NoError(t, err)
	deep, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText, AnalysisDepth: "deep"})
	require.NoError(t, err)

	assert.Less(t, deep.Confidence, basic.Confidence)
	assert.GreaterOrEqual(t, len(deep.Requirements), len(basic.Requirements))
	assert.Equal(t, "false", deep.Metadata[models.MetaKeyBackendUsed])
}

func TestExecute_DeepLocalInferenceCarriesCueExcerpt(t *testing.T) {
	h := newTestHandler(t, "")

	// No requirement markers, so the basic pass finds nothing and the deep
	// pass infers purely from the "partner" cue.
	text := "The program connects community groups with experienced partner networks across the region."
	out, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: text, AnalysisDepth: "deep"})
	require.NoError(t, err)

	require.Len(t, out.Requirements, 1)
	r := out.Requirements[0]
	assert.Equal(t, "Formalize partner commitments in written agreements", r.Description)
	require.NotEmpty(t, r.SourceExcerpt, "inferred requirements must carry the evidence they rest on")
	assert.Contains(t, strings.ToLower(r.SourceExcerpt), "partner")
	assert.Contains(t, text, r.SourceExcerpt, "the excerpt must come from the input text")
}

func TestExecute_DeepInferenceOnlyConfidenceIsDiscountedFloor(t *testing.T) {
	h := newTestHandler(t, "")

	text := "The program connects community groups with experienced partner networks across the region."

	basic, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: text, AnalysisDepth: "basic"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmpty, basic.Status)
	assert.Equal(t, 0.0, basic.Confidence)

	// With zero explicit findings the deep pass bootstraps from the minimum
	// evidence floor and discounts it, rather than reporting empty.
	deep, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: text, AnalysisDepth: "deep"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, deep.Status)
	assert.InDelta(t, 12.75, deep.Confidence, 0.001)
}

func TestExecute_DeepUsesBackendAnnotations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"annotations":[{"excerpt":"Letters of support from municipal partners","label":"preferred","category":"organizational","exactness":0.6}]}`))
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL)
	out, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText, AnalysisDepth: "deep"})
	require.NoError(t, err)

	assert.Equal(t, "true", out.Metadata[models.MetaKeyBackendUsed])
	assert.Equal(t, "1", out.Metadata[models.MetaKeyInferredCount])

	var found bool
	for _, r := range out.Requirements {
		if r.Description == "Letters of support from municipal partners" {
			found = true
			assert.Equal(t, models.RequirementPreferred, r.Kind)
			assert.Equal(t, models.CategoryOrganizational, r.Category)
		}
	}
	assert.True(t, found, "backend annotation must become a requirement")
}

func TestExecute_BackendFailureDegradesToLocalInference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL)
	out, err := h.Execute(context.Background(), &Input{GrantID: "grant-1", GrantText: eligibilityText, AnalysisDepth: "deep"})
	require.NoError(t, err, "backend failure must not fail the deep pass")
	assert.Equal(t, "false", out.Metadata[models.MetaKeyBackendUsed])
}

func TestExecute_NoFindingsIsEmptyNotError(t *testing.T) {
	h := newTestHandler(t, "")

	out, err := h.Execute(context.Background(), &Input{
		GrantID:   "grant-1",
		GrantText: "This program celebrates community gardening achievements across the whole region every single year.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmpty, out.Status)
	assert.Empty(t, out.Requirements)
	assert.Equal(t, 0.0, out.Confidence)
}

func TestExecute_InputValidation(t *testing.T) {
	h := newTestHandler(t, "")

	tests := []struct {
		name  string
		input *Input
		field string
	}{
		{name: "nil input", input: nil, field: "input"},
		{name: "missing grant id", input: &Input{GrantText: eligibilityText}, field: "grantId"},
		{name: "text too short", input: &Input{GrantID: "g", GrantText: "too short"}, field: "grantText"},
		{name: "unknown depth", input: &Input{GrantID: "g", GrantText: eligibilityText, AnalysisDepth: "exhaustive"}, field: "analysisDepth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			stdErr := errors.Normalize(err)
			assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
			assert.Equal(t, tt.field, stdErr.Field)
		})
	}
}
