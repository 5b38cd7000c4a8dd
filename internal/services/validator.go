package services

import (
	"fmt"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultMinSuccessRate is the share of valid rows below which a run fails validation
const DefaultMinSuccessRate = 0.8

var (
	balanceAbsTolerance = decimal.NewFromFloat(0.01)
	balanceRelTolerance = decimal.NewFromFloat(0.005)
)

// Validator folds parsed lines into a ValidationReport. It never fails: every
// problem becomes a diagnostic.
type Validator struct {
	tables         *LocaleTables
	minSuccessRate float64
	statementType  models.StatementType

	total int
	valid int

	totals       map[string]map[string]decimal.Decimal // category -> period -> total
	section      map[string]decimal.Decimal            // raw detail sums since the last boundary
	sectionLines int
	labels       map[string]bool

	diag *Aggregator
}

// NewValidator creates a validator. A minSuccessRate outside (0, 1] uses the default.
func NewValidator(statementType models.StatementType, minSuccessRate float64) *Validator {
	if minSuccessRate <= 0 || minSuccessRate > 1 {
		minSuccessRate = DefaultMinSuccessRate
	}
	return &Validator{
		tables:         defaultTables,
		minSuccessRate: minSuccessRate,
		statementType:  statementType,
		totals:         make(map[string]map[string]decimal.Decimal),
		section:        make(map[string]decimal.Decimal),
		labels:         make(map[string]bool),
		diag:           NewAggregator(),
	}
}

// SetStatementType sets the statement type reported once it is known
func (v *Validator) SetStatementType(st models.StatementType) {
	v.statementType = st
}

// Observe folds one line into the report
func (v *Validator) Observe(line models.ParsedLine) {
	v.total++
	if line.IsValid() {
		v.valid++
	}
	v.diag.ObserveLine(line)

	for _, p := range line.Periods {
		if v.labels[p.Period] {
			continue
		}
		v.labels[p.Period] = true
		if _, ok := ParsePeriodLabel(p.Period); !ok {
			v.diag.Warnf("Unparseable period label: %q", p.Period)
		}
	}

	switch {
	case len(line.Periods) == 0:
		// Label-only rows open a new section
		v.resetSection()
	case line.IsSubtotal:
		if v.tables.IsTotal(line.Label()) {
			v.checkBalance(line)
		}
		v.resetSection()
	default:
		v.addDetail(line)
	}
}

func (v *Validator) addDetail(line models.ParsedLine) {
	byPeriod, ok := v.totals[line.Category]
	if !ok {
		byPeriod = make(map[string]decimal.Decimal)
		v.totals[line.Category] = byPeriod
	}
	for _, p := range line.Periods {
		if !p.Valid {
			continue
		}
		byPeriod[p.Period] = byPeriod[p.Period].Add(decimal.NewFromFloat(p.Amount))
		v.section[p.Period] = v.section[p.Period].Add(decimal.NewFromFloat(p.RawAmount))
	}
	v.sectionLines++
}

// checkBalance compares a total row with the raw sum of the detail rows of
// its section, as written in the sheet
func (v *Validator) checkBalance(line models.ParsedLine) {
	if v.sectionLines == 0 {
		return
	}
	for _, p := range line.Periods {
		expected, ok := v.section[p.Period]
		if !p.Valid || !ok {
			continue
		}
		actual := decimal.NewFromFloat(p.RawAmount)
		tolerance := balanceAbsTolerance.Add(expected.Abs().Mul(balanceRelTolerance))
		if actual.Sub(expected).Abs().GreaterThan(tolerance) {
			v.diag.Errorf("Balance mismatch: %s in %s is %s, detail rows sum to %s",
				line.Label(), p.Period, actual.StringFixed(2), expected.StringFixed(2))
		}
	}
}

func (v *Validator) resetSection() {
	clear(v.section)
	v.sectionLines = 0
}

// Report renders the report for every line observed so far
func (v *Validator) Report() *models.ValidationReport {
	report := &models.ValidationReport{
		StatementType:  v.statementType,
		TotalRows:      v.total,
		ValidRows:      v.valid,
		InvalidRows:    v.total - v.valid,
		CategoryTotals: make(map[string]map[string]float64, len(v.totals)),
	}

	if v.total > 0 {
		report.SuccessRate = float64(v.valid) / float64(v.total)
	}

	// Report-level checks run on a copy so Report stays repeatable
	diag := v.diag.Result()
	switch {
	case v.total == 0:
		diag.Errors = appendCapped(diag.Errors, "No data rows: the data range holds no account rows")
	case report.SuccessRate < v.minSuccessRate:
		diag.Errors = appendCapped(diag.Errors, fmt.Sprintf("Low success rate: %.1f%% of rows parsed, %.1f%% required",
			report.SuccessRate*100, v.minSuccessRate*100))
	}
	report.Warnings = diag.Warnings
	report.Errors = diag.Errors

	for category, byPeriod := range v.totals {
		out := make(map[string]float64, len(byPeriod))
		for period, sum := range byPeriod {
			out[period] = sum.InexactFloat64()
		}
		report.CategoryTotals[category] = out
	}

	return report
}

func appendCapped(list []string, msg string) []string {
	if len(list) >= MaxDiagnostics {
		return list
	}
	return append(list, msg)
}
