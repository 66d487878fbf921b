package validatecompliance

import "grant-engine/internal/models"

type Input struct {
	ApplicationID string                 `json:"applicationId"`
	Content       map[string]interface{} `json:"content"`
	RuleSetID     string                 `json:"ruleSetId,omitempty"`
}

type Output = models.ComplianceResult
