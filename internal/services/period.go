package services

import (
	"strconv"
	"strings"
	"time"
)

// Period is the calendar span a period column label stands for
type Period struct {
	Label string
	Start time.Time // First day, UTC
	End   time.Time // Last day, UTC
}

const periodLabelLayout = "January 2006"

// ParsePeriodLabel resolves labels such as "January 2024", "Ene-24",
// "Jan/24", "2024-01", "01/2024", "Q1 2024", "2024" or "2024-01-31" in any
// supported language.
func ParsePeriodLabel(label string) (Period, bool) {
	return defaultTables.parsePeriod(label)
}

// PeriodFromCell resolves a header cell, accepting typed dates as well as text
func PeriodFromCell(v any) (Period, bool) {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return Period{}, false
		}
		p := monthPeriod(t.Year(), int(t.Month()))
		p.Label = t.Format(periodLabelLayout)
		return p, true
	}
	s, ok := v.(string)
	if !ok {
		return Period{}, false
	}
	return ParsePeriodLabel(s)
}

func (t *LocaleTables) parsePeriod(label string) (Period, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return Period{}, false
	}

	if d, err := time.Parse("2006-01-02", trimmed); err == nil {
		return withLabel(monthPeriod(d.Year(), int(d.Month())), trimmed), true
	}

	tokens := splitPeriodTokens(Fold(trimmed))
	switch len(tokens) {
	case 1:
		// A bare year covers the whole year
		if y, ok := parseYear(tokens[0], true); ok {
			return withLabel(spanPeriod(y, 1, 12), trimmed), true
		}
	case 2:
		a, b := tokens[0], tokens[1]
		if p, ok := t.monthYear(a, b); ok {
			return withLabel(p, trimmed), true
		}
		if p, ok := t.monthYear(b, a); ok && len(a) == 4 {
			return withLabel(p, trimmed), true
		}
		if p, ok := quarterYear(a, b); ok {
			return withLabel(p, trimmed), true
		}
		if p, ok := quarterYear(b, a); ok {
			return withLabel(p, trimmed), true
		}
	}
	return Period{}, false
}

// monthYear reads a month token (name or number) followed by a year token
func (t *LocaleTables) monthYear(monthToken, yearToken string) (Period, bool) {
	month, ok := t.Month(monthToken)
	if !ok {
		n, err := strconv.Atoi(monthToken)
		if err != nil || len(monthToken) > 2 || n < 1 || n > 12 {
			return Period{}, false
		}
		month = n
	}
	year, ok := parseYear(yearToken, false)
	if !ok {
		return Period{}, false
	}
	return monthPeriod(year, month), true
}

func quarterYear(quarterToken, yearToken string) (Period, bool) {
	if len(quarterToken) != 2 || quarterToken[0] != 'q' {
		return Period{}, false
	}
	q := int(quarterToken[1] - '0')
	if q < 1 || q > 4 {
		return Period{}, false
	}
	year, ok := parseYear(yearToken, false)
	if !ok {
		return Period{}, false
	}
	return spanPeriod(year, (q-1)*3+1, q*3), true
}

// parseYear accepts four-digit years, and two-digit years as 20xx unless
// fourDigitsOnly is set
func parseYear(token string, fourDigitsOnly bool) (int, bool) {
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	switch {
	case len(token) == 4 && n >= 1900 && n <= 2100:
		return n, true
	case len(token) == 2 && !fourDigitsOnly:
		return 2000 + n, true
	}
	return 0, false
}

// splitPeriodTokens splits a folded label on spaces and at letter/digit
// boundaries, so "ene24" reads as "ene", "24"
func splitPeriodTokens(folded string) []string {
	var tokens []string
	for _, field := range strings.Fields(folded) {
		start := 0
		for i := 1; i < len(field); i++ {
			if isDigit(field[i]) != isDigit(field[i-1]) && !(field[i-1] == 'q' && i == 1) {
				tokens = append(tokens, field[start:i])
				start = i
			}
		}
		tokens = append(tokens, field[start:])
	}
	return tokens
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func monthPeriod(year, month int) Period {
	return spanPeriod(year, month, month)
}

func spanPeriod(year, firstMonth, lastMonth int) Period {
	start := time.Date(year, time.Month(firstMonth), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.Month(lastMonth)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return Period{Start: start, End: end}
}

func withLabel(p Period, label string) Period {
	p.Label = label
	return p
}
