package models

// OrgType mirrors the organization categories recognized by grant programs.
type OrgType string

const (
	OrgNonprofit  OrgType = "nonprofit"
	OrgSME        OrgType = "sme"
	OrgStartup    OrgType = "startup"
	OrgUniversity OrgType = "university"
	OrgResearch   OrgType = "research"
	OrgPublic     OrgType = "public"
)

// OrgSize follows the usual micro/small/medium/large banding.
type OrgSize string

const (
	SizeMicro  OrgSize = "micro"
	SizeSmall  OrgSize = "small"
	SizeMedium OrgSize = "medium"
	SizeLarge  OrgSize = "large"
)

type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city,omitempty"`
}

type Experience struct {
	YearsActive     int     `json:"yearsActive"`
	PriorGrants     int     `json:"priorGrants"`
	LifetimeFunding float64 `json:"lifetimeFunding"`
}

// Financials holds optional financial facts. Pointer fields distinguish
// "not provided" from zero; evaluation degrades confidence when they are nil
// rather than failing.
type Financials struct {
	AnnualRevenue *float64 `json:"annualRevenue,omitempty"`
	EmployeeCount *int     `json:"employeeCount,omitempty"`
	LegalForm     string   `json:"legalForm,omitempty"`
}

// OrganizationProfile is supplied by the caller and treated as read-only.
type OrganizationProfile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           OrgType    `json:"orgType"`
	Size           OrgSize    `json:"size"`
	Location       Location   `json:"location"`
	Sectors        []string   `json:"sectors"`
	Experience     Experience `json:"experience"`
	Financials     Financials `json:"financials"`
	Capabilities   []string   `json:"capabilities,omitempty"`
	Certifications []string   `json:"certifications,omitempty"`
	Partnerships   []string   `json:"partnerships,omitempty"`
}
