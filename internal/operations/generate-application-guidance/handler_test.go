package generateapplicationguidance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"

	analyzegrantrequirements "grant-engine/internal/operations/analyze-grant-requirements"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data    map[string][]byte
	err     error
	lastOp  string
	lastKey string
}

func (f *fakeStore) LoadLatestForGrant(ctx context.Context, operation, grantID string) ([]byte, error) {
	f.lastOp = operation
	f.lastKey = grantID
	if f.err != nil {
		return nil, f.err
	}
	return f.data[grantID], nil
}

func storedAnalysis(t *testing.T) []byte {
	analysis := models.GrantAnalysisResult{
		GrantID: "grant-42",
		Requirements: []models.GrantRequirement{
			{ID: "r1", Description: "Submit audited financial statements", Kind: models.RequirementMandatory, Category: models.CategoryFinancial, Importance: 9},
			{ID: "r2", Description: "Be a registered nonprofit", Kind: models.RequirementMandatory, Category: models.CategoryLegal, Importance: 8},
			{ID: "r3", Description: "Letters of support from partners", Kind: models.RequirementPreferred, Category: models.CategoryOrganizational, Importance: 6},
		},
		EligibilityCriteria: []models.EligibilityCriterion{
			{ID: "c1", Criterion: "2+ years of operating history", Kind: models.CriterionExperience, Mandatory: true, VerificationMethod: "track record documentation"},
		},
		AnalysisDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Confidence:   80,
		Status:       models.StatusOK,
		Metadata:     models.NewMetadata(),
	}
	data, err := json.Marshal(analysis)
	require.NoError(t, err)
	return data
}

func newTestHandler(t *testing.T, s *fakeStore) *Handler {
	return NewHandler(LoadConfig(), s, logger.NewTestLogger(t))
}

func TestExecute_ComposesGuidanceFromStoredAnalysis(t *testing.T) {
	store := &fakeStore{data: map[string][]byte{"grant-42": storedAnalysis(t)}}
	h := newTestHandler(t, store)

	out, err := h.Execute(context.Background(), &Input{GrantID: "grant-42", OrganizationType: "nonprofit"})
	require.NoError(t, err)

	assert.Equal(t, analyzegrantrequirements.Name, store.lastOp, "guidance reads the extractor's stored result")

	titles := make(map[string]models.GuidanceSection)
	for _, s := range out.Sections {
		titles[s.Title] = s
	}
	require.Contains(t, titles, "Mandatory requirements")
	assert.Equal(t, 1, titles["Mandatory requirements"].Priority)
	assert.Contains(t, titles["Mandatory requirements"].Content, "Submit audited financial statements")

	require.Contains(t, titles, "Eligibility checklist")
	assert.Contains(t, titles["Eligibility checklist"].Content, "track record documentation")

	require.Contains(t, titles, "Advice for nonprofit applicants")
	assert.Equal(t, 3, titles["Advice for nonprofit applicants"].Priority)

	// Priorities are the mandatory requirements ordered by importance.
	require.Len(t, out.Priorities, 2)
	assert.Equal(t, "Submit audited financial statements", out.Priorities[0])

	assert.InDelta(t, 72.0, out.Confidence, 0.001, "guidance confidence is the discounted analysis confidence")
}

func TestExecute_NoStoredAnalysis(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})

	_, err := h.Execute(context.Background(), &Input{GrantID: "grant-unseen", OrganizationType: "nonprofit"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnalysisNotFound, errors.Normalize(err).Code)
}

func TestExecute_StoreFailurePropagates(t *testing.T) {
	h := newTestHandler(t, &fakeStore{err: errors.NewStoreReadFailedError(assert.AnError)})

	_, err := h.Execute(context.Background(), &Input{GrantID: "grant-42", OrganizationType: "nonprofit"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreReadFailed, errors.Normalize(err).Code)
}

func TestExecute_Validation(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})

	_, err := h.Execute(context.Background(), &Input{OrganizationType: "nonprofit"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Normalize(err).Code)

	_, err = h.Execute(context.Background(), &Input{GrantID: "grant-42", OrganizationType: "guild"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Normalize(err).Code)
}
