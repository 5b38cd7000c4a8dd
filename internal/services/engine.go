package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/models"
)

const maxDetectionTexts = 500

// EngineConfig holds extraction defaults
type EngineConfig struct {
	DefaultLocale  string
	MinSuccessRate float64
}

// Engine runs extraction and validation as one streaming pass
type Engine struct {
	cfg     EngineConfig
	matcher *RuleMatcher
}

// RunInput is everything one extraction needs
type RunInput struct {
	Grid    models.Grid
	Mapping models.Mapping
	Locale  string
	Rules   RuleSet
}

// ExtractionResult is the outcome of a run
type ExtractionResult struct {
	StatementType models.StatementType     `json:"statement_type"`
	Locale        string                   `json:"locale"`
	TemplateID    *uuid.UUID               `json:"template_id,omitempty"` // Set when a template was applied
	Lines         []models.ParsedLine      `json:"lines"`
	Report        *models.ValidationReport `json:"report"`
}

// NewEngine creates a new engine instance
func NewEngine(cfg EngineConfig, matcher *RuleMatcher) *Engine {
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en-US"
	}
	if matcher == nil {
		matcher = NewRuleMatcher()
	}
	return &Engine{cfg: cfg, matcher: matcher}
}

// Run extracts, normalizes and validates a grid. Only a StructuralError or a
// cancelled context fails the run; everything else lands in the report.
func (e *Engine) Run(ctx context.Context, in RunInput) (*ExtractionResult, error) {
	started := time.Now()
	locale := in.Locale
	if locale == "" {
		locale = e.cfg.DefaultLocale
	}

	extractor := NewExtractor(NewNormalizer(in.Rules, e.matcher))
	validator := NewValidator(in.Mapping.StatementType, e.cfg.MinSuccessRate)

	var lines []models.ParsedLine
	texts := headerTexts(in.Grid, in.Mapping)

	err := extractor.ExtractEach(ctx, in.Grid, in.Mapping, locale, func(line models.ParsedLine) error {
		validator.Observe(line)
		lines = append(lines, line)
		if len(texts) < maxDetectionTexts {
			texts = append(texts, line.Label())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	statementType := in.Mapping.StatementType
	if !statementType.Valid() {
		statementType = DetectStatementType(texts)
	}
	validator.SetStatementType(statementType)
	report := validator.Report()

	logger.FromContext(ctx).Info().
		Str("statement_type", string(statementType)).
		Str("locale", locale).
		Int("rows", report.TotalRows).
		Int("valid_rows", report.ValidRows).
		Int("errors", len(report.Errors)).
		Dur("took", time.Since(started)).
		Msg("extraction finished")

	return &ExtractionResult{
		StatementType: statementType,
		Locale:        locale,
		Lines:         lines,
		Report:        report,
	}, nil
}

func headerTexts(grid models.Grid, mapping models.Mapping) []string {
	texts := make([]string, 0, len(mapping.PeriodColumns)+4)
	if mapping.HeaderRow == nil {
		return texts
	}
	for col := 0; col < grid.ColumnCount(); col++ {
		if text := models.CellText(grid.Cell(*mapping.HeaderRow, col)); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}
