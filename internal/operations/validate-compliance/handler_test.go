package validatecompliance

import (
	"context"
	"fmt"
	"testing"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

func compileTestRuleSet(t *testing.T, doc string) map[string]*CompiledRuleSet {
	compiled, err := CompileRuleSet(gojsonschema.NewStringLoader(ruleSetSchema), []byte(doc))
	require.NoError(t, err)
	return map[string]*CompiledRuleSet{compiled.Set.ID: compiled}
}

func newTestHandler(t *testing.T, ruleSets map[string]*CompiledRuleSet) *Handler {
	return NewHandler(LoadConfig(), ruleSets, logger.NewTestLogger(t))
}

func ruleJSON(id, severity, predicate string) string {
	return fmt.Sprintf(`{
		"id": %q, "rule": "rule %s", "category": "content", "severity": %q,
		"description": "test rule", "predicate": %s,
		"fixSuggestion": "fix %s"
	}`, id, id, severity, predicate, id)
}

func TestExecute_OneCriticalFailureAmongCompliantRules(t *testing.T) {
	rules := []string{
		ruleJSON("r-critical", "critical", `{"kind": "presence", "field": "budget"}`),
	}
	for i := 0; i < 9; i++ {
		rules = append(rules, ruleJSON(fmt.Sprintf("r-%d", i), "minor", `{"kind": "presence", "field": "summary"}`))
	}
	doc := fmt.Sprintf(`{"id": "default", "name": "Default", "version": "1", "rules": [%s]}`,
		joinRules(rules))

	h := newTestHandler(t, compileTestRuleSet(t, doc))
	out, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		Content:       map[string]interface{}{"summary": "a project summary"},
	})
	require.NoError(t, err)

	assert.False(t, out.OverallCompliant, "a single critical failure must fail the application")
	require.Len(t, out.CriticalIssues, 1)
	assert.Equal(t, "r-critical", out.CriticalIssues[0].RuleID)
	assert.Len(t, out.Checks, 10)
	assert.Contains(t, out.Recommendations, "fix r-critical")
}

func TestExecute_NonCriticalFailuresStayCompliant(t *testing.T) {
	doc := fmt.Sprintf(`{"id": "default", "name": "Default", "version": "1", "rules": [%s]}`,
		ruleJSON("r-minor", "minor", `{"kind": "presence", "field": "annex"}`))

	h := newTestHandler(t, compileTestRuleSet(t, doc))
	out, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		Content:       map[string]interface{}{"summary": "text"},
	})
	require.NoError(t, err)

	assert.True(t, out.OverallCompliant)
	assert.Empty(t, out.CriticalIssues)
	assert.Equal(t, models.StatusNonCompliant, out.Checks[0].Status)
}

func TestExecute_PredicateKinds(t *testing.T) {
	content := map[string]interface{}{
		"summary":     "We will restore the riverbank across three municipalities.",
		"budget":      float64(45000),
		"attachments": map[string]interface{}{"auditReport": "audit-2025.pdf"},
		"draftNotes":  "internal",
	}

	tests := []struct {
		name      string
		predicate string
		want      models.ComplianceStatus
	}{
		{"pattern match", `{"kind": "pattern", "field": "summary", "pattern": "riverbank"}`, models.StatusCompliant},
		{"pattern miss", `{"kind": "pattern", "field": "summary", "pattern": "^Budget:"}`, models.StatusNonCompliant},
		{"presence nested", `{"kind": "presence", "field": "attachments.auditReport"}`, models.StatusCompliant},
		{"absence violated", `{"kind": "absence", "field": "draftNotes"}`, models.StatusNonCompliant},
		{"numeric within", `{"kind": "numeric_bound", "field": "budget", "min": 10000, "max": 50000}`, models.StatusCompliant},
		{"numeric above max", `{"kind": "numeric_bound", "field": "budget", "min": 10000, "max": 40000}`, models.StatusNonCompliant},
		{"length within", `{"kind": "length_bound", "field": "summary", "minLength": 10, "maxLength": 500}`, models.StatusCompliant},
		{"length too short", `{"kind": "length_bound", "field": "summary", "minLength": 500}`, models.StatusNonCompliant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fmt.Sprintf(`{"id": "default", "name": "Default", "version": "1", "rules": [%s]}`,
				ruleJSON("r-1", "major", tt.predicate))
			h := newTestHandler(t, compileTestRuleSet(t, doc))

			out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Content: content})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Checks[0].Status, out.Checks[0].Details)
		})
	}
}

func TestExecute_AllOfPartial(t *testing.T) {
	predicate := `{"kind": "all_of", "conditions": [
		{"kind": "presence", "field": "summary"},
		{"kind": "presence", "field": "budget"},
		{"kind": "presence", "field": "annex"}
	]}`
	doc := fmt.Sprintf(`{"id": "default", "name": "Default", "version": "1", "rules": [%s]}`,
		ruleJSON("r-all", "critical", predicate))

	h := newTestHandler(t, compileTestRuleSet(t, doc))
	out, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		Content:       map[string]interface{}{"summary": "text", "budget": 100.0},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, out.Checks[0].Status)
	assert.False(t, out.OverallCompliant, "a partial critical rule counts as non-compliant")
	assert.Len(t, out.CriticalIssues, 1)
}

func TestExecute_UnknownRuleSet(t *testing.T) {
	h := newTestHandler(t, map[string]*CompiledRuleSet{})

	_, err := h.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		Content:       map[string]interface{}{"summary": "text"},
		RuleSetID:     "missing",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRuleSetNotFound, errors.Normalize(err).Code)
}

func TestCompileRuleSet_RejectsInvalidDefinitions(t *testing.T) {
	loader := gojsonschema.NewStringLoader(ruleSetSchema)

	tests := []struct {
		name string
		doc  string
	}{
		{"missing rules", `{"id": "x", "name": "X", "version": "1"}`},
		{"empty rules", `{"id": "x", "name": "X", "version": "1", "rules": []}`},
		{"bad severity", fmt.Sprintf(`{"id": "x", "name": "X", "version": "1", "rules": [%s]}`,
			ruleJSON("r", "fatal", `{"kind": "presence", "field": "a"}`))},
		{"bad regex", fmt.Sprintf(`{"id": "x", "name": "X", "version": "1", "rules": [%s]}`,
			ruleJSON("r", "major", `{"kind": "pattern", "field": "a", "pattern": "(["}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileRuleSet(loader, []byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeIncompleteRuleSet, errors.Normalize(err).Code)
		})
	}
}

func TestExecute_InputValidation(t *testing.T) {
	h := newTestHandler(t, map[string]*CompiledRuleSet{})

	_, err := h.Execute(context.Background(), &Input{Content: map[string]interface{}{"a": "b"}})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Normalize(err).Code)

	_, err = h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Normalize(err).Code)
}

func joinRules(rules []string) string {
	out := ""
	for i, r := range rules {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}
