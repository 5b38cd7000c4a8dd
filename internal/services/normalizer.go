package services

import (
	"math"
	"strings"

	"github.com/ashmitsharp/finlens-api/internal/models"
)

// direction of a category: +1 inflow, -1 outflow, 0 follows the cell sign
var categoryDirection = map[string]int{
	models.CategoryRevenue:          1,
	models.CategoryCostOfSales:      -1,
	models.CategoryOperatingExpense: -1,
	models.CategoryTax:              -1,
}

var canonicalCategories = map[string]bool{
	models.CategoryRevenue:          true,
	models.CategoryCostOfSales:      true,
	models.CategoryOperatingExpense: true,
	models.CategoryTax:              true,
	models.CategoryOther:            true,
}

// Normalizer assigns categories and applies the sign convention. Once a
// category is known it decides the sign, whatever sign the cell carried.
type Normalizer struct {
	tables  *LocaleTables
	rules   RuleSet
	matcher *RuleMatcher
}

// NewNormalizer creates a normalizer over the embedded locale tables
func NewNormalizer(rules RuleSet, matcher *RuleMatcher) *Normalizer {
	return NewNormalizerWithTables(defaultTables, rules, matcher)
}

// NewNormalizerWithTables creates a normalizer over custom locale tables
func NewNormalizerWithTables(tables *LocaleTables, rules RuleSet, matcher *RuleMatcher) *Normalizer {
	if matcher == nil {
		matcher = NewRuleMatcher()
	}
	return &Normalizer{
		tables:  tables,
		rules:   rules,
		matcher: matcher,
	}
}

// Normalize sets the category, subtotal flag, inflow flag and normalized
// period amounts of line. categoryCell is the raw text of the mapped category
// column, or "" when none is mapped.
func (n *Normalizer) Normalize(line *models.ParsedLine, categoryCell string) {
	label := line.Label()

	category, override := n.categorize(label, categoryCell)
	line.Category = category
	line.IsSubtotal = n.tables.IsSubtotal(label)

	dir := categoryDirection[category]
	if override != nil {
		dir = -1
		if *override {
			dir = 1
		}
	}

	for i := range line.Periods {
		p := &line.Periods[i]
		if !p.Valid {
			p.Amount = 0
			continue
		}
		switch dir {
		case 1:
			p.Amount = math.Abs(p.RawAmount)
		case -1:
			p.Amount = -math.Abs(p.RawAmount)
		default:
			p.Amount = p.RawAmount
		}
	}

	switch dir {
	case 1:
		line.IsInflow = true
	case -1:
		line.IsInflow = false
	default:
		line.IsInflow = firstNonZeroSign(line.Periods) >= 0
	}
}

// categorize resolves the category of a line: an explicit category cell,
// then company rules, organization rules and the locale keyword tables. The
// returned override is the matched rule's explicit inflow flag, if any.
func (n *Normalizer) categorize(label, categoryCell string) (string, *bool) {
	if explicit := strings.TrimSpace(categoryCell); explicit != "" {
		return n.Canonicalize(explicit), nil
	}

	for _, layer := range [][]models.CategoryRule{n.rules.Company, n.rules.Organization} {
		if len(layer) == 0 {
			continue
		}
		if rule, ok := n.matcher.Match(label, layer); ok {
			return n.Canonicalize(rule.Category), rule.Inflow
		}
	}

	if category := n.tables.CategoryFor(label); category != "" {
		return category, nil
	}
	return models.CategoryOther, nil
}

// Canonicalize maps free category text ("Gastos Operativos", "COGS") onto a
// canonical category. Unknown text is kept verbatim.
func (n *Normalizer) Canonicalize(category string) string {
	trimmed := strings.TrimSpace(category)
	if slug := strings.ToLower(trimmed); canonicalCategories[slug] {
		return slug
	}
	if canonical := n.tables.CategoryFor(trimmed); canonical != "" {
		return canonical
	}
	return trimmed
}

func firstNonZeroSign(periods []models.PeriodValue) int {
	for _, p := range periods {
		if !p.Valid || p.RawAmount == 0 {
			continue
		}
		if p.RawAmount < 0 {
			return -1
		}
		return 1
	}
	return 0
}
