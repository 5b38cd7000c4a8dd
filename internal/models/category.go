package models

import (
	"time"

	"github.com/google/uuid"
)

// Subcategory is an organization- or company-defined refinement of a category
type Subcategory struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	CompanyID      *uuid.UUID `json:"company_id,omitempty"`
	Category       string     `json:"category"`
	Value          string     `json:"value"`
	Label          string     `json:"label"`
	IsOverride     bool       `json:"is_override"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CategoryRule maps an account-name keyword to a category for one tenant scope
type CategoryRule struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	CompanyID      *uuid.UUID `json:"company_id,omitempty"`
	Keyword        string     `json:"keyword"`
	Category       string     `json:"category"`
	MatchType      string     `json:"match_type"` // substring, exact, regex, fuzzy
	Priority       int32      `json:"priority"`
	Inflow         *bool      `json:"inflow,omitempty"` // Explicit sign override
	CreatedAt      time.Time  `json:"created_at"`
}
