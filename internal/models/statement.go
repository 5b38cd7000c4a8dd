package models

import (
	"time"

	"github.com/google/uuid"
)

// StatementType is the kind of financial statement in a sheet
type StatementType string

const (
	StatementProfitLoss   StatementType = "profit_loss"
	StatementCashFlow     StatementType = "cash_flow"
	StatementBalanceSheet StatementType = "balance_sheet"
)

// Valid reports whether t is a known statement type
func (t StatementType) Valid() bool {
	switch t {
	case StatementProfitLoss, StatementCashFlow, StatementBalanceSheet:
		return true
	}
	return false
}

// Canonical line categories
const (
	CategoryRevenue          = "revenue"
	CategoryCostOfSales      = "cost_of_sales"
	CategoryOperatingExpense = "operating_expense"
	CategoryTax              = "tax"
	CategoryOther            = "other"
)

// PeriodValue is one period cell of a parsed line
type PeriodValue struct {
	Period    string  `json:"period"`
	Amount    float64 `json:"amount"`     // Normalized, signed by category
	RawAmount float64 `json:"raw_amount"` // Signed as written in the cell
	Original  string  `json:"original"`   // Cell text before parsing
	Valid     bool    `json:"valid"`
}

// ParsedLine is one account row extracted from a grid
type ParsedLine struct {
	RowIndex    int           `json:"row_index"`
	AccountCode *string       `json:"account_code,omitempty"`
	AccountName *string       `json:"account_name,omitempty"`
	Category    string        `json:"category"`
	Subcategory *string       `json:"subcategory,omitempty"`
	IsInflow    bool          `json:"is_inflow"`
	IsSubtotal  bool          `json:"is_subtotal"`
	Periods     []PeriodValue `json:"periods"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// Label returns the best human-readable identifier of the line
func (l ParsedLine) Label() string {
	if l.AccountName != nil && *l.AccountName != "" {
		return *l.AccountName
	}
	if l.AccountCode != nil {
		return *l.AccountCode
	}
	return ""
}

// IsValid reports whether every period entry parsed
func (l ParsedLine) IsValid() bool {
	for _, p := range l.Periods {
		if !p.Valid {
			return false
		}
	}
	return true
}

// ValidationReport summarizes an extraction run
type ValidationReport struct {
	StatementType  StatementType                 `json:"statement_type"`
	TotalRows      int                           `json:"total_rows"`
	ValidRows      int                           `json:"valid_rows"`
	InvalidRows    int                           `json:"invalid_rows"`
	SuccessRate    float64                       `json:"success_rate"`
	Warnings       []string                      `json:"warnings"`
	Errors         []string                      `json:"errors"`
	CategoryTotals map[string]map[string]float64 `json:"category_totals"` // category -> period -> total
}

// HasErrors reports whether the run produced validation failures
func (r *ValidationReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// Statement is the persisted header of an extracted statement
type Statement struct {
	ID            uuid.UUID     `json:"id"`
	CompanyID     uuid.UUID     `json:"company_id"`
	StatementType StatementType `json:"statement_type"`
	Currency      string        `json:"currency"`
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`
	SourceRef     string        `json:"source_ref"`
	TemplateID    *uuid.UUID    `json:"template_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// LineItem is one persisted (line, period) amount. Text fields that may carry
// sensitive content are stored encoded; the amount is always plain.
type LineItem struct {
	ID             uuid.UUID `json:"id"`
	StatementID    uuid.UUID `json:"statement_id"`
	RowIndex       int       `json:"row_index"`
	AccountCode    *string   `json:"account_code,omitempty"`
	Category       string    `json:"category"`
	Subcategory    *string   `json:"subcategory,omitempty"`
	PeriodLabel    string    `json:"period_label"`
	PeriodDate     time.Time `json:"period_date"`
	Amount         float64   `json:"amount"`
	IsSubtotal     bool      `json:"is_subtotal"`
	DisplayNameEnc string    `json:"-"`
	MetadataEnc    string    `json:"-"`
	DisplayName    string    `json:"display_name,omitempty"` // Populated on decode only
}
