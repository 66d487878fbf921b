package analyzegrantrequirements

import "grant-engine/internal/models"

type Input struct {
	GrantID       string `json:"grantId"`
	GrantText     string `json:"grantText"`
	AnalysisDepth string `json:"analysisDepth,omitempty"`
}

type Output = models.GrantAnalysisResult
