package services

import (
	"context"
	"fmt"

	"github.com/ashmitsharp/finlens-api/internal/models"
)

// Extractor walks the data range of a grid and builds one parsed line per
// account row
type Extractor struct {
	tables     *LocaleTables
	normalizer *Normalizer
}

// NewExtractor creates an extractor normalizing lines with n
func NewExtractor(n *Normalizer) *Extractor {
	return &Extractor{
		tables:     n.tables,
		normalizer: n,
	}
}

// Extract applies mapping to grid with no category rules
func Extract(grid models.Grid, mapping models.Mapping, locale string) ([]models.ParsedLine, error) {
	return NewExtractor(NewNormalizer(RuleSet{}, nil)).Extract(context.Background(), grid, mapping, locale)
}

// Extract collects every line of the data range
func (e *Extractor) Extract(ctx context.Context, grid models.Grid, mapping models.Mapping, locale string) ([]models.ParsedLine, error) {
	var lines []models.ParsedLine
	err := e.ExtractEach(ctx, grid, mapping, locale, func(line models.ParsedLine) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ExtractEach yields lines one row at a time. It halts on a StructuralError
// before reading any row, on context cancellation, or when fn fails.
func (e *Extractor) ExtractEach(ctx context.Context, grid models.Grid, mapping models.Mapping, locale string, fn func(models.ParsedLine) error) error {
	if err := mapping.Validate(grid); err != nil {
		return err
	}

	codeCol := mapping.ColumnFor(models.RoleAccountCode)
	nameCol := mapping.ColumnFor(models.RoleAccountName)
	categoryCol := mapping.ColumnFor(models.RoleCategory)
	subcategoryCol := mapping.ColumnFor(models.RoleSubcategory)

	for row := mapping.DataRange.StartRow; row <= mapping.DataRange.EndRow; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if grid.IsEmptyRow(row) {
			continue
		}

		code := conceptText(grid, row, codeCol)
		name := conceptText(grid, row, nameCol)
		if code == "" && name == "" {
			continue
		}

		line := models.ParsedLine{
			RowIndex:    row,
			AccountCode: optionalText(code),
			AccountName: optionalText(name),
			Subcategory: optionalText(conceptText(grid, row, subcategoryCol)),
			Periods:     make([]models.PeriodValue, 0, len(mapping.PeriodColumns)),
		}

		for _, pc := range mapping.PeriodColumns {
			cell := grid.Cell(row, pc.Index)
			if models.IsEmptyCell(cell) {
				continue
			}
			original := models.CellText(cell)
			amount := parseAmountWith(e.tables, cell, locale)
			if !amount.IsValid {
				line.Warnings = append(line.Warnings,
					fmt.Sprintf("Invalid amount: %q in row %d, period %s", original, row+1, pc.Label))
			}
			line.Periods = append(line.Periods, models.PeriodValue{
				Period:    pc.Label,
				RawAmount: amount.Value,
				Original:  original,
				Valid:     amount.IsValid,
			})
		}

		if len(line.Periods) == 0 {
			line.Warnings = append(line.Warnings,
				fmt.Sprintf("No period data: row %d (%s)", row+1, line.Label()))
		}

		e.normalizer.Normalize(&line, conceptText(grid, row, categoryCol))

		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

func conceptText(grid models.Grid, row, col int) string {
	if col < 0 {
		return ""
	}
	return models.CellText(grid.Cell(row, col))
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
