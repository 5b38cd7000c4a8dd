package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/xuri/excelize/v2"
)

const csvSheetName = "Sheet1"

// Workbook is a decoded upload: its sheet names and the grid of one sheet
type Workbook struct {
	Sheets []string    `json:"sheets"`
	Sheet  string      `json:"sheet"`
	Grid   models.Grid `json:"-"`
}

// ReadWorkbook decodes an .xlsx or .csv upload into a grid. sheet selects a
// worksheet by name; empty selects the first one.
func ReadWorkbook(r io.Reader, filename, sheet string) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(r, sheet)
	case ".csv":
		if sheet != "" && sheet != csvSheetName {
			return nil, models.NewInputError("sheet %q not found", sheet)
		}
		return readCSV(r)
	default:
		return nil, models.NewInputError("unsupported file type: %s", filepath.Ext(filename))
	}
}

func readXLSX(r io.Reader, sheet string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, models.NewInputError("failed to open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.NewInputError("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, models.NewInputError("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	dateStyles := make(map[int]bool)
	grid := make(models.Grid, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, formatted := range row {
			cells[j] = typedCell(f, sheet, i, j, formatted, dateStyles)
		}
		grid[i] = cells
	}

	return &Workbook{Sheets: sheets, Sheet: sheet, Grid: grid}, nil
}

// typedCell returns numbers as float64 and date-formatted numbers as
// time.Time; everything else keeps its formatted text
func typedCell(f *excelize.File, sheet string, row, col int, formatted string, dateStyles map[int]bool) any {
	if strings.TrimSpace(formatted) == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return formatted
	}
	cellType, err := f.GetCellType(sheet, axis)
	if err != nil || (cellType != excelize.CellTypeUnset && cellType != excelize.CellTypeNumber) {
		return formatted
	}

	raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return formatted
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return formatted
	}

	styleID, err := f.GetCellStyle(sheet, axis)
	if err == nil && isDateStyle(f, styleID, dateStyles) {
		if t, err := excelize.ExcelDateToTime(number, false); err == nil {
			return t
		}
	}
	return number
}

// Built-in number formats that render dates
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 30: true, 36: true, 50: true, 57: true,
}

func isDateStyle(f *excelize.File, styleID int, cache map[int]bool) bool {
	if styleID == 0 {
		return false
	}
	if known, ok := cache[styleID]; ok {
		return known
	}

	isDate := false
	if style, err := f.GetStyle(styleID); err == nil && style != nil {
		if builtinDateFormats[style.NumFmt] {
			isDate = true
		} else if style.CustomNumFmt != nil {
			format := strings.ToLower(*style.CustomNumFmt)
			isDate = strings.Contains(format, "yy") || strings.Contains(format, "mmm") ||
				(strings.Contains(format, "d") && strings.Contains(format, "m"))
		}
	}
	cache[styleID] = isDate
	return isDate
}

func readCSV(r io.Reader) (*Workbook, error) {
	br := bufio.NewReader(r)
	// Spreadsheet exports often start with a UTF-8 byte order mark
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		if _, err := br.Discard(3); err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid models.Grid
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.NewInputError("failed to read csv row %d: %v", len(grid)+1, err)
		}
		cells := make([]any, len(record))
		for i, v := range record {
			if strings.TrimSpace(v) != "" {
				cells[i] = v
			}
		}
		grid = append(grid, cells)
	}

	if len(grid) == 0 {
		return nil, models.NewInputError("empty file")
	}
	return &Workbook{Sheets: []string{csvSheetName}, Sheet: csvSheetName, Grid: grid}, nil
}
