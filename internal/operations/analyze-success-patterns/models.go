package analyzesuccesspatterns

import "grant-engine/internal/models"

type Input struct {
	GrantType        string `json:"grantType"`
	OrganizationType string `json:"organizationType,omitempty"`
	CorpusReference  string `json:"corpusReference,omitempty"`
}

type Output = models.SuccessPatternResult
