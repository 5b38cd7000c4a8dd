package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Grid is a decoded sheet: rows × columns of untyped cell values, zero-based.
// A cell is a string, a number, a time.Time, or nil. Rows may be ragged; a
// missing cell reads as empty.
type Grid [][]any

// RowCount returns the number of rows in the grid
func (g Grid) RowCount() int {
	return len(g)
}

// ColumnCount returns the width of the widest row
func (g Grid) ColumnCount() int {
	width := 0
	for _, row := range g {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Cell returns the value at (row, col), or nil when out of range
func (g Grid) Cell(row, col int) any {
	if row < 0 || row >= len(g) {
		return nil
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}

// IsEmptyRow reports whether every cell in the row is empty
func (g Grid) IsEmptyRow(row int) bool {
	if row < 0 || row >= len(g) {
		return true
	}
	for _, v := range g[row] {
		if !IsEmptyCell(v) {
			return false
		}
	}
	return true
}

// IsEmptyCell reports whether a cell carries no value
func IsEmptyCell(v any) bool {
	return CellText(v) == ""
}

// CellText renders a cell as trimmed text
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
