package services

import (
	"testing"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectStatementType(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  models.StatementType
	}{
		{"profit and loss", []string{"Sales Revenue", "Cost of Goods Sold", "Gross Profit"}, models.StatementProfitLoss},
		{"cash flow", []string{"Beginning Balance", "Operating Activities", "Ending Balance"}, models.StatementCashFlow},
		{"spanish cash flow", []string{"Flujo de Efectivo", "Saldo Inicial", "Cobros"}, models.StatementCashFlow},
		{"balance sheet", []string{"Total Assets", "Total Liabilities", "Retained Earnings"}, models.StatementBalanceSheet},
		{"no signal", []string{"Foo", "Bar"}, models.StatementProfitLoss},
		{"tie", []string{"Revenue", "Assets"}, models.StatementProfitLoss},
		{"empty", nil, models.StatementProfitLoss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectStatementType(tt.texts))
		})
	}
}

func TestSuggestMapping_ProfitAndLoss(t *testing.T) {
	grid := models.Grid{
		{"Account", "Description", "January 2024", "February 2024", "Total"},
		{"4010", "Sales Revenue", "$125,000", "$132,000", "$257,000"},
		{"5010", "Cost of Goods Sold", "(40,000)", "(41,000)", "(81,000)"},
		{"6100", "Rent", "5,000", "5,000", "10,000"},
		{nil, nil, nil, nil, nil},
	}

	candidate, err := SuggestMapping(grid, "en-US")

	require.NoError(t, err)
	assert.Equal(t, 0, candidate.HeaderRow)
	assert.Equal(t, models.StatementProfitLoss, candidate.StatementType)
	assert.Equal(t, models.DataRange{StartRow: 1, EndRow: 3}, candidate.Mapping.DataRange)
	assert.Equal(t, []models.ConceptColumn{
		{Index: 0, Role: models.RoleAccountCode},
		{Index: 1, Role: models.RoleAccountName},
	}, candidate.Mapping.ConceptColumns)
	assert.Equal(t, []models.PeriodColumn{
		{Index: 2, Label: "January 2024"},
		{Index: 3, Label: "February 2024"},
	}, candidate.Mapping.PeriodColumns)
	assert.Equal(t, GuessIgnored, candidate.Columns[4].Role)

	// The suggestion is directly usable
	lines, err := Extract(grid, candidate.Mapping, "en-US")
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestSuggestMapping_SpanishWithTitleAndCategory(t *testing.T) {
	grid := models.Grid{
		{"Estado de Resultados 2024"},
		{},
		{"Concepto", "Categoría", "Ene-24", "Feb-24"},
		{"Ventas Nacionales", "ingreso", "1.000,00", "1.100,00"},
		{"Sueldos", "gasto", "(300,00)", "(300,00)"},
	}

	candidate, err := SuggestMapping(grid, "es-MX")

	require.NoError(t, err)
	assert.Equal(t, 2, candidate.HeaderRow)
	assert.Equal(t, models.StatementProfitLoss, candidate.StatementType)
	assert.Equal(t, 0, candidate.Mapping.ColumnFor(models.RoleAccountName))
	assert.Equal(t, 1, candidate.Mapping.ColumnFor(models.RoleCategory))
	require.Len(t, candidate.Mapping.PeriodColumns, 2)
	assert.Equal(t, "Ene-24", candidate.Mapping.PeriodColumns[0].Label)
}

func TestSuggestMapping_TypedDateHeaders(t *testing.T) {
	grid := models.Grid{
		{"Code", "Line Item", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"A-100", "Operating Activities", 10.0, 20.0},
		{"A-200", "Net Cash Flow", 10.0, 20.0},
	}

	candidate, err := SuggestMapping(grid, "en-US")

	require.NoError(t, err)
	assert.Equal(t, models.StatementCashFlow, candidate.StatementType)
	assert.Equal(t, "January 2024", candidate.Mapping.PeriodColumns[0].Label)
	assert.Equal(t, "February 2024", candidate.Mapping.PeriodColumns[1].Label)
	assert.Equal(t, 0, candidate.Mapping.ColumnFor(models.RoleAccountCode))
}

func TestSuggestMapping_LabelledAmountColumnsFallback(t *testing.T) {
	grid := models.Grid{
		{"Account", "Actual", "Budget"},
		{"Sales", "1,000", "1,200"},
		{"Rent", 200.0, 180.0},
	}

	candidate, err := SuggestMapping(grid, "en-US")

	require.NoError(t, err)
	assert.Equal(t, []models.PeriodColumn{
		{Index: 1, Label: "Actual"},
		{Index: 2, Label: "Budget"},
	}, candidate.Mapping.PeriodColumns)
	assert.Equal(t, 0, candidate.Mapping.ColumnFor(models.RoleAccountName))
	assert.Less(t, candidate.Columns[1].Confidence, 1.0)
}

func TestSuggestMapping_Errors(t *testing.T) {
	_, err := SuggestMapping(models.Grid{}, "en-US")
	assert.True(t, models.IsStructural(err))

	_, err = SuggestMapping(models.Grid{{"only one"}, {"cell"}}, "en-US")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestSuggestMapping_HeaderOnly(t *testing.T) {
	grid := models.Grid{
		{"Account", "January 2024", "February 2024"},
		{nil, nil, nil},
	}

	candidate, err := SuggestMapping(grid, "en-US")

	assert.Nil(t, candidate)
	require.Error(t, err)
	assert.True(t, models.IsStructural(err))
	assert.Contains(t, err.Error(), "no data rows")
}
