package services

import (
	"testing"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineWith(name string, raws ...float64) models.ParsedLine {
	line := models.ParsedLine{AccountName: &name}
	for i, raw := range raws {
		line.Periods = append(line.Periods, models.PeriodValue{
			Period:    []string{"January 2024", "February 2024", "March 2024"}[i],
			RawAmount: raw,
			Valid:     true,
		})
	}
	return line
}

func amounts(line models.ParsedLine) []float64 {
	out := make([]float64, len(line.Periods))
	for i, p := range line.Periods {
		out[i] = p.Amount
	}
	return out
}

// Source sheets enter expenses either as positive numbers under an expense
// label or as negative numbers. Both must normalize to the same value.
func TestNormalizer_SignConventionsPerCategory(t *testing.T) {
	n := NewNormalizer(RuleSet{}, nil)

	tests := []struct {
		name       string
		category   string
		raw        float64
		want       float64
		wantInflow bool
	}{
		{"revenue entered positive", models.CategoryRevenue, 1000, 1000, true},
		{"revenue entered negative", models.CategoryRevenue, -1000, 1000, true},
		{"cost of sales entered positive", models.CategoryCostOfSales, 400, -400, false},
		{"cost of sales entered negative", models.CategoryCostOfSales, -400, -400, false},
		{"operating expense entered positive", models.CategoryOperatingExpense, 25000, -25000, false},
		{"operating expense entered negative", models.CategoryOperatingExpense, -25000, -25000, false},
		{"tax entered positive", models.CategoryTax, 120, -120, false},
		{"tax entered negative", models.CategoryTax, -120, -120, false},
		{"other keeps positive sign", models.CategoryOther, 75, 75, true},
		{"other keeps negative sign", models.CategoryOther, -75, -75, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineWith("Line", tt.raw)

			n.Normalize(&line, tt.category)

			assert.Equal(t, tt.category, line.Category)
			assert.Equal(t, tt.want, line.Periods[0].Amount)
			assert.Equal(t, tt.raw, line.Periods[0].RawAmount)
			assert.Equal(t, tt.wantInflow, line.IsInflow)
		})
	}
}

func TestNormalizer_InfersCategoryFromName(t *testing.T) {
	n := NewNormalizer(RuleSet{}, nil)

	tests := []struct {
		name     string
		account  string
		want     string
		wantSign float64
	}{
		{"english revenue", "Sales Revenue", models.CategoryRevenue, 1},
		{"spanish revenue", "Ingresos por Ventas", models.CategoryRevenue, 1},
		{"cogs", "Cost of Goods Sold", models.CategoryCostOfSales, -1},
		{"spanish expense", "Gastos de Administración", models.CategoryOperatingExpense, -1},
		{"tax", "Income Tax", models.CategoryTax, -1},
		{"unknown", "Suspense Account", models.CategoryOther, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineWith(tt.account, 100)

			n.Normalize(&line, "")

			assert.Equal(t, tt.want, line.Category)
			assert.Equal(t, tt.wantSign*100, line.Periods[0].Amount)
		})
	}
}

func TestNormalizer_CategoryPrecedence(t *testing.T) {
	rules := RuleSet{
		Company: []models.CategoryRule{
			{Keyword: "consulting", Category: "revenue", MatchType: MatchSubstring},
		},
		Organization: []models.CategoryRule{
			{Keyword: "consulting", Category: "operating_expense", MatchType: MatchSubstring},
			{Keyword: "software", Category: "cost_of_sales", MatchType: MatchSubstring},
		},
	}
	n := NewNormalizer(rules, nil)

	tests := []struct {
		name    string
		account string
		cell    string
		want    string
	}{
		{"company rule beats organization rule", "Consulting Fees", "", models.CategoryRevenue},
		{"organization rule beats keyword table", "Software Sales", "", models.CategoryCostOfSales},
		{"category cell beats every rule", "Consulting Fees", "Tax", models.CategoryTax},
		{"category cell canonicalized", "Misc", "Gastos Operativos", models.CategoryOperatingExpense},
		{"unknown category cell kept", "Misc", "Intercompany", "Intercompany"},
		{"keyword table last", "Office Rent", "", models.CategoryOperatingExpense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineWith(tt.account, 10)

			n.Normalize(&line, tt.cell)

			assert.Equal(t, tt.want, line.Category)
		})
	}
}

func TestNormalizer_RuleInflowOverride(t *testing.T) {
	inflow := true
	outflow := false
	rules := RuleSet{Organization: []models.CategoryRule{
		{Keyword: "refund", Category: "operating_expense", Inflow: &inflow},
		{Keyword: "grant", Category: "other", Inflow: &outflow},
	}}
	n := NewNormalizer(rules, nil)

	refund := lineWith("Supplier Refund", -300)
	n.Normalize(&refund, "")
	assert.Equal(t, models.CategoryOperatingExpense, refund.Category)
	assert.Equal(t, 300.0, refund.Periods[0].Amount)
	assert.True(t, refund.IsInflow)

	grant := lineWith("Grant Repayment", 50)
	n.Normalize(&grant, "")
	assert.Equal(t, -50.0, grant.Periods[0].Amount)
	assert.False(t, grant.IsInflow)
}

func TestNormalizer_InvalidPeriodsZeroed(t *testing.T) {
	n := NewNormalizer(RuleSet{}, nil)
	line := lineWith("Sales", 100, 0)
	line.Periods[1].Valid = false
	line.Periods[1].Original = "n/a"

	n.Normalize(&line, "")

	assert.Equal(t, []float64{100, 0}, amounts(line))
}

func TestNormalizer_AmbiguousInflowFromFirstNonZero(t *testing.T) {
	n := NewNormalizer(RuleSet{}, nil)
	line := lineWith("Suspense", 0, -20, 30)

	n.Normalize(&line, "")

	require.Equal(t, models.CategoryOther, line.Category)
	assert.False(t, line.IsInflow)
	assert.Equal(t, []float64{0, -20, 30}, amounts(line))
}

func TestNormalizer_FlagsSubtotals(t *testing.T) {
	n := NewNormalizer(RuleSet{}, nil)

	total := lineWith("Total Revenue", 100)
	n.Normalize(&total, "")
	assert.True(t, total.IsSubtotal)
	assert.Equal(t, models.CategoryRevenue, total.Category)

	detail := lineWith("Product Revenue", 100)
	n.Normalize(&detail, "")
	assert.False(t, detail.IsSubtotal)
}

func TestCanonicalize(t *testing.T) {
	n := NewNormalizer(RuleSet{}, nil)

	assert.Equal(t, models.CategoryRevenue, n.Canonicalize(" Revenue "))
	assert.Equal(t, models.CategoryCostOfSales, n.Canonicalize("COGS"))
	assert.Equal(t, models.CategoryOther, n.Canonicalize("OTHER"))
	assert.Equal(t, "Intercompany", n.Canonicalize("Intercompany"))
}
