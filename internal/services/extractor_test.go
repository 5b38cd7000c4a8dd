package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pnlMapping(endRow int) models.Mapping {
	header := 0
	return models.Mapping{
		ConceptColumns: []models.ConceptColumn{
			{Index: 0, Role: models.RoleAccountCode},
			{Index: 1, Role: models.RoleAccountName},
		},
		PeriodColumns: []models.PeriodColumn{
			{Index: 2, Label: "January 2024"},
			{Index: 3, Label: "February 2024"},
		},
		DataRange: models.DataRange{StartRow: 1, EndRow: endRow},
		HeaderRow: &header,
	}
}

func TestExtract_SalesRevenueRow(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024"},
		{"4010", "Sales Revenue", "$125,000", "$132,000"},
	}

	lines, err := Extract(grid, pnlMapping(1), "en-US")

	require.NoError(t, err)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "4010", *line.AccountCode)
	assert.Equal(t, "Sales Revenue", *line.AccountName)
	assert.Equal(t, models.CategoryRevenue, line.Category)
	assert.True(t, line.IsInflow)
	assert.Empty(t, line.Warnings)
	require.Len(t, line.Periods, 2)
	assert.Equal(t, "January 2024", line.Periods[0].Period)
	assert.Equal(t, 125000.0, line.Periods[0].Amount)
	assert.True(t, line.Periods[0].Valid)
	assert.Equal(t, "February 2024", line.Periods[1].Period)
	assert.Equal(t, 132000.0, line.Periods[1].Amount)
	assert.True(t, line.Periods[1].Valid)
}

func TestExtract_ParenthesizedExpenseUnderCategoryColumn(t *testing.T) {
	grid := models.Grid{
		{"Name", "Category", "January 2024"},
		{"Consulting", "operating_expense", "($25,000)"},
		{"Hosting", "operating_expense", "25,000"},
	}
	mapping := models.Mapping{
		ConceptColumns: []models.ConceptColumn{
			{Index: 0, Role: models.RoleAccountName},
			{Index: 1, Role: models.RoleCategory},
		},
		PeriodColumns: []models.PeriodColumn{{Index: 2, Label: "January 2024"}},
		DataRange:     models.DataRange{StartRow: 1, EndRow: 2},
	}

	lines, err := Extract(grid, mapping, "en-US")

	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, -25000.0, lines[0].Periods[0].Amount)
	assert.Equal(t, -25000.0, lines[0].Periods[0].RawAmount)
	assert.Equal(t, -25000.0, lines[1].Periods[0].Amount)
	assert.Equal(t, 25000.0, lines[1].Periods[0].RawAmount)
	assert.False(t, lines[0].IsInflow)
}

func TestExtract_SkipsEmptyAndUnlabelledRows(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024"},
		{"4010", "Sales Revenue", 100.0, 200.0},
		{nil, "", nil, nil},
		{},
		{nil, nil, 50.0, 60.0},
		{"", "   ", "70", nil},
		{"5010", nil, 10.0, nil},
	}

	lines, err := Extract(grid, pnlMapping(6), "en-US")

	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, line.AccountCode != nil || line.AccountName != nil)
	}
	assert.Equal(t, 1, lines[0].RowIndex)
	assert.Equal(t, 6, lines[1].RowIndex)
	assert.Nil(t, lines[1].AccountName)
}

func TestExtract_SparsePeriodsAndWarnings(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024"},
		{"4010", "Sales Revenue", nil, "$132,000"},
		{"6000", "Operating Expenses", nil, nil},
		{"6100", "Rent", "n/a", "1,000"},
	}

	lines, err := Extract(grid, pnlMapping(3), "en-US")

	require.NoError(t, err)
	require.Len(t, lines, 3)

	require.Len(t, lines[0].Periods, 1)
	assert.Equal(t, "February 2024", lines[0].Periods[0].Period)

	assert.Empty(t, lines[1].Periods)
	require.Len(t, lines[1].Warnings, 1)
	assert.Equal(t, "No period data: row 3 (Operating Expenses)", lines[1].Warnings[0])

	require.Len(t, lines[2].Periods, 2)
	assert.False(t, lines[2].Periods[0].Valid)
	assert.Equal(t, "n/a", lines[2].Periods[0].Original)
	assert.Equal(t, 0.0, lines[2].Periods[0].Amount)
	assert.Equal(t, -1000.0, lines[2].Periods[1].Amount)
	assert.Equal(t, []string{`Invalid amount: "n/a" in row 4, period January 2024`}, lines[2].Warnings)
}

func TestExtract_SpanishLocale(t *testing.T) {
	grid := models.Grid{
		{"Código", "Concepto", "Ene-24"},
		{"4000", "Ventas Nacionales", "$ 1.250.000,50"},
		{"6000", "Gastos de Nómina", "(35.000,00)"},
	}
	mapping := models.Mapping{
		ConceptColumns: []models.ConceptColumn{
			{Index: 0, Role: models.RoleAccountCode},
			{Index: 1, Role: models.RoleAccountName},
		},
		PeriodColumns: []models.PeriodColumn{{Index: 2, Label: "Ene-24"}},
		DataRange:     models.DataRange{StartRow: 1, EndRow: 2},
	}

	lines, err := Extract(grid, mapping, "es-MX")

	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, models.CategoryRevenue, lines[0].Category)
	assert.Equal(t, 1250000.5, lines[0].Periods[0].Amount)
	assert.Equal(t, models.CategoryOperatingExpense, lines[1].Category)
	assert.Equal(t, -35000.0, lines[1].Periods[0].Amount)
}

func TestExtract_StructuralErrors(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024"},
		{"4010", "Sales Revenue", "1", "2"},
	}

	tests := []struct {
		name    string
		mutate  func(m *models.Mapping)
		wantErr string
	}{
		{"end row past grid", func(m *models.Mapping) { m.DataRange.EndRow = 5 }, "outside grid"},
		{"period column past grid", func(m *models.Mapping) { m.PeriodColumns[1].Index = 9 }, "outside grid"},
		{"no period columns", func(m *models.Mapping) { m.PeriodColumns = nil }, "no period columns"},
		{"concept and period overlap", func(m *models.Mapping) { m.PeriodColumns[0].Index = 1 }, "both a concept and a period"},
		{"no account column", func(m *models.Mapping) {
			m.ConceptColumns = []models.ConceptColumn{{Index: 0, Role: models.RoleCategory}}
		}, "account_code or account_name"},
		{"inverted range", func(m *models.Mapping) { m.DataRange = models.DataRange{StartRow: 1, EndRow: 0} }, "invalid data range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping := pnlMapping(1)
			tt.mutate(&mapping)
			called := false

			err := NewExtractor(NewNormalizer(RuleSet{}, nil)).ExtractEach(context.Background(), grid, mapping, "en-US",
				func(models.ParsedLine) error {
					called = true
					return nil
				})

			require.Error(t, err)
			assert.True(t, models.IsStructural(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, called)
		})
	}
}

func TestExtractEach_StopsOnCallbackError(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024"},
		{"4010", "Sales", "1", "2"},
		{"4020", "Services", "3", "4"},
	}
	stop := errors.New("stop")
	seen := 0

	err := NewExtractor(NewNormalizer(RuleSet{}, nil)).ExtractEach(context.Background(), grid, pnlMapping(2), "en-US",
		func(models.ParsedLine) error {
			seen++
			return stop
		})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestExtractEach_HonorsCancellation(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024"},
		{"4010", "Sales", "1", "2"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(NewNormalizer(RuleSet{}, nil)).Extract(ctx, grid, pnlMapping(1), "en-US")

	assert.ErrorIs(t, err, context.Canceled)
}
