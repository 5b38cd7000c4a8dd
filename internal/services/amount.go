package services

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountResult is the outcome of parsing one amount cell
type AmountResult struct {
	Value     float64 // Signed value
	Magnitude float64 // Absolute value of the digits
	Negative  bool    // Sign marker found in the cell
	IsValid   bool
}

// ParseAmount converts a raw cell into a number using the separators of
// locale. Numeric cells pass through unchanged. Strings may carry currency
// symbols or codes, a leading or trailing minus, or accounting parentheses.
func ParseAmount(raw any, locale string) AmountResult {
	return parseAmountWith(defaultTables, raw, locale)
}

func parseAmountWith(tables *LocaleTables, raw any, locale string) AmountResult {
	switch v := raw.(type) {
	case float64:
		return numericResult(v)
	case float32:
		return numericResult(float64(v))
	case int:
		return numericResult(float64(v))
	case int32:
		return numericResult(float64(v))
	case int64:
		return numericResult(float64(v))
	case uint:
		return numericResult(float64(v))
	case uint32:
		return numericResult(float64(v))
	case uint64:
		return numericResult(float64(v))
	case decimal.Decimal:
		f, _ := v.Float64()
		return numericResult(f)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return AmountResult{}
		}
		f, _ := d.Float64()
		return numericResult(f)
	case string:
		return parseAmountString(tables, v, locale)
	case []byte:
		return parseAmountString(tables, string(v), locale)
	}
	return AmountResult{}
}

func numericResult(v float64) AmountResult {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return AmountResult{}
	}
	return AmountResult{
		Value:     v,
		Magnitude: math.Abs(v),
		Negative:  v < 0,
		IsValid:   true,
	}
}

func parseAmountString(tables *LocaleTables, raw, locale string) AmountResult {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\u00a0', '\u202f', '\u2009':
			return -1
		}
		return r
	}, raw)
	for _, token := range tables.currencyTokens {
		s = strings.ReplaceAll(s, token, "")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	seps := tables.SeparatorsFor(locale)
	if !wellGrouped(s, seps) {
		return AmountResult{}
	}
	s = strings.ReplaceAll(s, seps.Thousands, "")
	if seps.Decimal != "." {
		s = strings.ReplaceAll(s, seps.Decimal, ".")
	}

	if !isPlainDecimal(s) {
		return AmountResult{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return AmountResult{}
	}

	magnitude, _ := d.Float64()
	value := magnitude
	if negative && magnitude != 0 {
		value = -magnitude
	}
	return AmountResult{
		Value:     value,
		Magnitude: magnitude,
		Negative:  negative,
		IsValid:   true,
	}
}

// wellGrouped reports whether the thousands separators in s sit where
// locale puts them: only before the decimal separator, with a leading group
// of one to three digits and three-digit groups after it. Two-digit inner
// groups are allowed for lakh notation ("1,23,456").
func wellGrouped(s string, seps Separators) bool {
	if seps.Thousands == "" || !strings.Contains(s, seps.Thousands) {
		return true
	}
	intPart, frac, _ := strings.Cut(s, seps.Decimal)
	if strings.Contains(frac, seps.Thousands) {
		return false
	}

	groups := strings.Split(intPart, seps.Thousands)
	for i, g := range groups {
		switch {
		case i == 0:
			if len(g) < 1 || len(g) > 3 {
				return false
			}
		case i == len(groups)-1:
			if len(g) != 3 {
				return false
			}
		default:
			if len(g) != 2 && len(g) != 3 {
				return false
			}
		}
	}
	return true
}

// isPlainDecimal accepts digits with at most one '.' and at least one digit
func isPlainDecimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// FormatAmount renders x with two decimals using the separators of locale.
// Negative values use a leading minus, or accounting parentheses when parens
// is set.
func FormatAmount(x float64, locale string, parens bool) string {
	seps := defaultTables.SeparatorsFor(locale)
	d := decimal.NewFromFloat(x).Round(2)
	negative := d.IsNegative()

	fixed := d.Abs().StringFixed(2)
	intPart, frac := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, frac = fixed[:i], fixed[i+1:]
	}

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(seps.Thousands)
		}
		b.WriteRune(c)
	}
	b.WriteString(seps.Decimal)
	b.WriteString(frac)

	out := b.String()
	switch {
	case negative && parens:
		return "(" + out + ")"
	case negative:
		return "-" + out
	}
	return out
}
