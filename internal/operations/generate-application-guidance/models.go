package generateapplicationguidance

import "grant-engine/internal/models"

type Input struct {
	GrantID          string `json:"grantId"`
	OrganizationType string `json:"organizationType"`
}

type Output = models.ApplicationGuidance
