package models

import "time"

type GuidanceSection struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority int    `json:"priority"` // 1 = address first
}

// ApplicationGuidance is advisory text composed from a stored grant analysis
// and an organization-type template. Consumer-facing; not part of the
// analytical core.
type ApplicationGuidance struct {
	GrantID          string            `json:"grantId"`
	OrganizationType OrgType           `json:"organizationType"`
	Sections         []GuidanceSection `json:"sections"`
	Priorities       []string          `json:"priorities"`
	Confidence       float64           `json:"confidence"`
	ComposedAt       time.Time         `json:"composedAt"`
	Metadata         Metadata          `json:"metadata"`
}
