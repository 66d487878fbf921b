package checkeligibility

import "grant-engine/internal/models"

type Input struct {
	Organization models.OrganizationProfile    `json:"organization"`
	Criteria     []models.EligibilityCriterion `json:"criteria"`
}

type Output = models.EligibilityCheck
