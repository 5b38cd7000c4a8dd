package models

import (
	"time"

	"github.com/google/uuid"
)

// Scope is the tenant scope a caller operates in. A nil CompanyID means the
// organization itself.
type Scope struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	CompanyID      *uuid.UUID `json:"company_id,omitempty"`
}

// IsCompany reports whether the scope targets a company
func (s Scope) IsCompany() bool {
	return s.CompanyID != nil
}

// Organization returns the organization-level scope of s
func (s Scope) Organization() Scope {
	return Scope{OrganizationID: s.OrganizationID}
}

// Template is a saved, reusable mapping
type Template struct {
	ID               uuid.UUID     `json:"id"`
	OrganizationID   uuid.UUID     `json:"organization_id"`
	CompanyID        *uuid.UUID    `json:"company_id,omitempty"` // nil = organization template
	Name             string        `json:"name"`
	Mapping          Mapping       `json:"mapping"`
	StatementType    StatementType `json:"statement_type"`
	Locale           string        `json:"locale"`
	UsageCount       int64         `json:"usage_count"`
	LastUsedAt       *time.Time    `json:"last_used_at,omitempty"`
	IsDefault        bool          `json:"is_default"`
	SourceTemplateID *uuid.UUID    `json:"source_template_id,omitempty"` // Set on company clones
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Scope returns the scope the template belongs to
func (t Template) Scope() Scope {
	return Scope{OrganizationID: t.OrganizationID, CompanyID: t.CompanyID}
}

// InScope reports whether the template is owned exactly by s
func (t Template) InScope(s Scope) bool {
	if t.OrganizationID != s.OrganizationID {
		return false
	}
	if t.CompanyID == nil || s.CompanyID == nil {
		return t.CompanyID == nil && s.CompanyID == nil
	}
	return *t.CompanyID == *s.CompanyID
}

// VisibleFrom reports whether a caller in s may read the template: its own
// scope, or its organization's templates.
func (t Template) VisibleFrom(s Scope) bool {
	if t.OrganizationID != s.OrganizationID {
		return false
	}
	return t.CompanyID == nil || t.InScope(s)
}
