package services

import (
	"sort"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/shopspring/decimal"
)

// PeriodSummary is the inflow and outflow of one period of a statement
type PeriodSummary struct {
	Period  string    `json:"period"`
	Date    time.Time `json:"date"`
	Inflow  float64   `json:"inflow"`
	Outflow float64   `json:"outflow"`
	Net     float64   `json:"net"`
}

// StatementSummary aggregates the detail items of a stored statement
type StatementSummary struct {
	TotalInflow    float64                       `json:"total_inflow"`
	TotalOutflow   float64                       `json:"total_outflow"`
	Net            float64                       `json:"net"`
	LineItemCount  int                           `json:"line_item_count"`
	Periods        []PeriodSummary               `json:"periods"`
	CategoryTotals map[string]map[string]float64 `json:"category_totals"` // category -> period -> total
}

type periodSums struct {
	label   string
	date    time.Time
	inflow  decimal.Decimal
	outflow decimal.Decimal
}

// Summarize totals the items of a statement by period and category.
// Subtotal rows are derived figures and are left out.
func Summarize(items []models.LineItem) StatementSummary {
	byPeriod := make(map[string]*periodSums)
	byCategory := make(map[string]map[string]decimal.Decimal)
	var inflow, outflow decimal.Decimal
	count := 0

	for _, it := range items {
		if it.IsSubtotal {
			continue
		}
		count++
		amount := decimal.NewFromFloat(it.Amount)

		p, ok := byPeriod[it.PeriodLabel]
		if !ok {
			p = &periodSums{label: it.PeriodLabel, date: it.PeriodDate}
			byPeriod[it.PeriodLabel] = p
		}
		if amount.IsNegative() {
			p.outflow = p.outflow.Add(amount.Abs())
			outflow = outflow.Add(amount.Abs())
		} else {
			p.inflow = p.inflow.Add(amount)
			inflow = inflow.Add(amount)
		}

		if byCategory[it.Category] == nil {
			byCategory[it.Category] = make(map[string]decimal.Decimal)
		}
		byCategory[it.Category][it.PeriodLabel] = byCategory[it.Category][it.PeriodLabel].Add(amount)
	}

	summary := StatementSummary{
		TotalInflow:    inflow.InexactFloat64(),
		TotalOutflow:   outflow.InexactFloat64(),
		Net:            inflow.Sub(outflow).InexactFloat64(),
		LineItemCount:  count,
		Periods:        make([]PeriodSummary, 0, len(byPeriod)),
		CategoryTotals: make(map[string]map[string]float64, len(byCategory)),
	}
	for _, p := range byPeriod {
		summary.Periods = append(summary.Periods, PeriodSummary{
			Period:  p.label,
			Date:    p.date,
			Inflow:  p.inflow.InexactFloat64(),
			Outflow: p.outflow.InexactFloat64(),
			Net:     p.inflow.Sub(p.outflow).InexactFloat64(),
		})
	}
	sort.Slice(summary.Periods, func(i, j int) bool {
		return summary.Periods[i].Date.Before(summary.Periods[j].Date)
	})
	for category, periods := range byCategory {
		out := make(map[string]float64, len(periods))
		for label, sum := range periods {
			out[label] = sum.InexactFloat64()
		}
		summary.CategoryTotals[category] = out
	}
	return summary
}
