package services

import (
	"strings"
	"time"
	"unicode"

	"github.com/ashmitsharp/finlens-api/internal/models"
)

const (
	headerSearchRows = 20
	sampleRows       = 25
	dominantShare    = 0.6
)

// Column guess roles beyond the concept roles
const (
	GuessPeriod  = "period"
	GuessIgnored = "ignored"
)

// ColumnGuess is the classifier's verdict on one column
type ColumnGuess struct {
	Index      int     `json:"index"`
	Header     string  `json:"header"`
	Role       string  `json:"role"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
}

// CandidateMapping is a suggested mapping the caller may edit before extracting
type CandidateMapping struct {
	Mapping       models.Mapping       `json:"mapping"`
	StatementType models.StatementType `json:"statement_type"`
	HeaderRow     int                  `json:"header_row"`
	Columns       []ColumnGuess        `json:"columns"`
}

// DetectStatementType scores texts against the statement keywords of every
// language. Ties and no match default to profit_loss.
func DetectStatementType(texts []string) models.StatementType {
	scores := defaultTables.StatementScores(texts)

	best := models.StatementProfitLoss
	bestScore := 0
	tie := false
	for _, st := range []models.StatementType{models.StatementProfitLoss, models.StatementCashFlow, models.StatementBalanceSheet} {
		switch score := scores[st]; {
		case score > bestScore:
			best, bestScore, tie = st, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if tie {
		return models.StatementProfitLoss
	}
	return best
}

// SuggestMapping inspects the header row and a sample of data rows and
// proposes a mapping
func SuggestMapping(grid models.Grid, locale string) (*CandidateMapping, error) {
	if grid.RowCount() == 0 {
		return nil, models.NewStructuralError("grid is empty")
	}

	header := findHeaderRow(grid)
	if header < 0 {
		return nil, models.NewStructuralError("no header row within the first %d rows", headerSearchRows)
	}

	samples := sampleDataRows(grid, header)
	lastRow := lastNonEmptyRow(grid)
	if lastRow <= header {
		return nil, models.NewStructuralError("no data rows below header row %d", header)
	}

	candidate := &CandidateMapping{HeaderRow: header}
	headerRow := header
	candidate.Mapping.HeaderRow = &headerRow
	candidate.Mapping.DataRange = models.DataRange{StartRow: header + 1, EndRow: lastRow}

	cols := grid.ColumnCount()
	guesses := make([]ColumnGuess, cols)

	// Periods first: concept columns are the ones to their left
	firstPeriod := cols
	for col := 0; col < cols; col++ {
		headerCell := grid.Cell(header, col)
		guesses[col] = ColumnGuess{Index: col, Header: models.CellText(headerCell), Role: GuessIgnored}

		if defaultTables.HeaderRole(guesses[col].Header) == "total" {
			continue
		}
		if p, ok := PeriodFromCell(headerCell); ok {
			guesses[col].Role = GuessPeriod
			guesses[col].Label = p.Label
			guesses[col].Confidence = 1
		} else if share, label := dateLikeShare(grid, samples, col); share >= dominantShare {
			guesses[col].Role = GuessPeriod
			guesses[col].Label = guesses[col].Header
			if guesses[col].Label == "" {
				guesses[col].Label = label
			}
			guesses[col].Confidence = share
		}
		if guesses[col].Role == GuessPeriod {
			candidate.Mapping.PeriodColumns = append(candidate.Mapping.PeriodColumns,
				models.PeriodColumn{Index: col, Label: guesses[col].Label})
			firstPeriod = min(firstPeriod, col)
		}
	}

	// Without dated headers, labelled amount columns right of the first
	// text column stand in as periods ("Actual", "Budget")
	if len(candidate.Mapping.PeriodColumns) == 0 {
		for col := 1; col < cols; col++ {
			if guesses[col].Role != GuessIgnored || guesses[col].Header == "" {
				continue
			}
			if defaultTables.HeaderRole(guesses[col].Header) != "" {
				continue
			}
			if share := amountShare(grid, samples, col, locale); share >= dominantShare {
				guesses[col].Role = GuessPeriod
				guesses[col].Label = guesses[col].Header
				guesses[col].Confidence = share / 2
				candidate.Mapping.PeriodColumns = append(candidate.Mapping.PeriodColumns,
					models.PeriodColumn{Index: col, Label: guesses[col].Header})
				firstPeriod = min(firstPeriod, col)
			}
		}
	}

	assigned := make(map[models.ConceptRole]bool)
	assign := func(col int, role models.ConceptRole, confidence float64) {
		guesses[col].Role = string(role)
		guesses[col].Confidence = confidence
		assigned[role] = true
		candidate.Mapping.ConceptColumns = append(candidate.Mapping.ConceptColumns,
			models.ConceptColumn{Index: col, Role: role})
	}

	for col := 0; col < firstPeriod; col++ {
		if guesses[col].Role != GuessIgnored {
			continue
		}
		headerRole := models.ConceptRole(defaultTables.HeaderRole(guesses[col].Header))
		codeShare, textShare := textShares(grid, samples, col)

		switch {
		case (headerRole == models.RoleSubcategory || headerRole == models.RoleCategory) && !assigned[headerRole]:
			assign(col, headerRole, 1)
		case codeShare >= dominantShare && !assigned[models.RoleAccountCode] && !assigned[models.RoleAccountName]:
			assign(col, models.RoleAccountCode, codeShare)
		case textShare >= dominantShare && !assigned[models.RoleAccountName]:
			assign(col, models.RoleAccountName, textShare)
		}
	}

	candidate.Columns = guesses
	candidate.StatementType = DetectStatementType(statementTexts(grid, header, candidate.Mapping, samples))
	candidate.Mapping.StatementType = candidate.StatementType
	return candidate, nil
}

func findHeaderRow(grid models.Grid) int {
	limit := min(grid.RowCount(), headerSearchRows)
	for row := 0; row < limit; row++ {
		filled := 0
		for col := 0; col < len(grid[row]); col++ {
			if !models.IsEmptyCell(grid[row][col]) {
				filled++
			}
		}
		if filled >= 2 {
			return row
		}
	}
	return -1
}

func sampleDataRows(grid models.Grid, header int) []int {
	var rows []int
	for row := header + 1; row < grid.RowCount() && len(rows) < sampleRows; row++ {
		if !grid.IsEmptyRow(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func lastNonEmptyRow(grid models.Grid) int {
	for row := grid.RowCount() - 1; row >= 0; row-- {
		if !grid.IsEmptyRow(row) {
			return row
		}
	}
	return -1
}

// dateLikeShare returns the share of non-empty samples that read as dates or
// period labels, and the label of the first one
func dateLikeShare(grid models.Grid, samples []int, col int) (float64, string) {
	seen, dated := 0, 0
	first := ""
	for _, row := range samples {
		cell := grid.Cell(row, col)
		if models.IsEmptyCell(cell) {
			continue
		}
		seen++
		p, ok := PeriodFromCell(cell)
		if !ok {
			continue
		}
		if t, isTime := cell.(time.Time); isTime {
			p.Label = t.Format(periodLabelLayout)
		}
		dated++
		if first == "" {
			first = p.Label
		}
	}
	if seen == 0 {
		return 0, ""
	}
	return float64(dated) / float64(seen), first
}

// amountShare returns the share of non-empty samples that parse as amounts
// and are not bare account codes
func amountShare(grid models.Grid, samples []int, col int, locale string) float64 {
	seen, amounts := 0, 0
	for _, row := range samples {
		cell := grid.Cell(row, col)
		if models.IsEmptyCell(cell) {
			continue
		}
		seen++
		if _, isText := cell.(string); isText && isCodeLike(cell) {
			continue
		}
		if ParseAmount(cell, locale).IsValid {
			amounts++
		}
	}
	if seen == 0 {
		return 0
	}
	return float64(amounts) / float64(seen)
}

// textShares returns the share of non-empty samples that look like account
// codes and like free text
func textShares(grid models.Grid, samples []int, col int) (float64, float64) {
	seen, codes, texts := 0, 0, 0
	for _, row := range samples {
		cell := grid.Cell(row, col)
		if models.IsEmptyCell(cell) {
			continue
		}
		seen++
		switch {
		case isCodeLike(cell):
			codes++
		case isFreeText(cell):
			texts++
		}
	}
	if seen == 0 {
		return 0, 0
	}
	return float64(codes) / float64(seen), float64(texts) / float64(seen)
}

// isCodeLike accepts short tokens with a digit and no spaces ("4010",
// "6100-01", "A.12"), and integral numbers
func isCodeLike(cell any) bool {
	switch v := cell.(type) {
	case float64:
		return v == float64(int64(v)) && v >= 0
	case int, int32, int64:
		return true
	case string:
		s := strings.TrimSpace(v)
		if s == "" || len(s) > 20 {
			return false
		}
		hasDigit := false
		for _, r := range s {
			switch {
			case unicode.IsDigit(r):
				hasDigit = true
			case unicode.IsLetter(r), r == '.', r == '-', r == '_', r == '/':
			default:
				return false
			}
		}
		return hasDigit
	}
	return false
}

func isFreeText(cell any) bool {
	s, ok := cell.(string)
	if !ok {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// statementTexts gathers header cells and account labels for type detection
func statementTexts(grid models.Grid, header int, mapping models.Mapping, samples []int) []string {
	texts := make([]string, 0, grid.ColumnCount()+len(samples))
	for col := 0; col < len(grid[header]); col++ {
		texts = append(texts, models.CellText(grid[header][col]))
	}
	nameCol := mapping.ColumnFor(models.RoleAccountName)
	if nameCol < 0 {
		return texts
	}
	for row := header + 1; row <= mapping.DataRange.EndRow && row < grid.RowCount(); row++ {
		texts = append(texts, models.CellText(grid.Cell(row, nameCol)))
	}
	return texts
}
