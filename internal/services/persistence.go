package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const defaultCurrency = "USD"

// StatementStore persists statements. CreateStatement writes the statement
// and its items in one transaction; deleting a statement removes its items.
type StatementStore interface {
	CreateStatement(ctx context.Context, st *models.Statement, items []models.LineItem) error
	GetStatement(ctx context.Context, companyID, id uuid.UUID) (*models.Statement, []models.LineItem, error)
	ListStatements(ctx context.Context, companyID uuid.UUID) ([]models.Statement, error)
	DeleteStatement(ctx context.Context, companyID, id uuid.UUID) error
}

// ShapeInput is a completed extraction ready to be stored
type ShapeInput struct {
	CompanyID     uuid.UUID
	StatementType models.StatementType
	Currency      string
	SourceRef     string
	TemplateID    *uuid.UUID
	Lines         []models.ParsedLine
}

type lineMetadata struct {
	Row      int    `json:"row"`
	Original string `json:"original"`
	Subtotal bool   `json:"subtotal"`
}

// PersistenceService turns parsed lines into stored statements
type PersistenceService struct {
	store     StatementStore
	encoder   Encoder
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewPersistenceService creates a new persistence service instance
func NewPersistenceService(store StatementStore, encoder Encoder) *PersistenceService {
	return &PersistenceService{
		store:     store,
		encoder:   encoder,
		sanitizer: bluemonday.StrictPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Shape builds the statement header and one line item per valid period
// entry. Text fields are encoded; amounts stay plain.
func (s *PersistenceService) Shape(in ShapeInput) (*models.Statement, []models.LineItem, error) {
	if len(in.Lines) == 0 {
		return nil, nil, models.NewInputError("no lines to persist")
	}
	if !in.StatementType.Valid() {
		return nil, nil, models.NewInputError("unknown statement type %q", in.StatementType)
	}

	periods := make(map[string]Period)
	var start, end time.Time
	for _, line := range in.Lines {
		for _, p := range line.Periods {
			if _, ok := periods[p.Period]; ok {
				continue
			}
			parsed, ok := ParsePeriodLabel(p.Period)
			if !ok {
				return nil, nil, models.NewStructuralError("unparseable period label %q", p.Period)
			}
			periods[p.Period] = parsed
			if start.IsZero() || parsed.Start.Before(start) {
				start = parsed.Start
			}
			if end.IsZero() || parsed.End.After(end) {
				end = parsed.End
			}
		}
	}
	if len(periods) == 0 {
		return nil, nil, models.NewInputError("no period data to persist")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	st := &models.Statement{
		ID:            uuid.New(),
		CompanyID:     in.CompanyID,
		StatementType: in.StatementType,
		Currency:      currency,
		PeriodStart:   start,
		PeriodEnd:     end,
		SourceRef:     in.SourceRef,
		TemplateID:    in.TemplateID,
		CreatedAt:     s.now(),
	}

	items := make([]models.LineItem, 0, len(in.Lines)*len(periods))
	for _, line := range in.Lines {
		displayName := html.UnescapeString(s.sanitizer.Sanitize(line.Label()))
		encodedName, err := s.encoder.EncodeText(displayName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode display name: %w", err)
		}

		for _, p := range line.Periods {
			if !p.Valid {
				continue
			}
			metadata, err := s.encoder.EncodeJSON(lineMetadata{
				Row:      line.RowIndex,
				Original: p.Original,
				Subtotal: line.IsSubtotal,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode line metadata: %w", err)
			}

			items = append(items, models.LineItem{
				ID:             uuid.New(),
				StatementID:    st.ID,
				RowIndex:       line.RowIndex,
				AccountCode:    line.AccountCode,
				Category:       line.Category,
				Subcategory:    line.Subcategory,
				PeriodLabel:    p.Period,
				PeriodDate:     periods[p.Period].Start,
				Amount:         p.Amount,
				IsSubtotal:     line.IsSubtotal,
				DisplayNameEnc: encodedName,
				MetadataEnc:    metadata,
			})
		}
	}

	return st, items, nil
}

// Persist shapes and stores a statement in one write. Store failures are
// terminal and never retried.
func (s *PersistenceService) Persist(ctx context.Context, in ShapeInput) (*models.Statement, error) {
	st, items, err := s.Shape(in)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateStatement(ctx, st, items); err != nil {
		return nil, &models.PersistenceError{Op: "create statement", Err: err}
	}

	logger.FromContext(ctx).Info().
		Str("statement_id", st.ID.String()).
		Str("company_id", st.CompanyID.String()).
		Int("line_items", len(items)).
		Msg("statement persisted")
	return st, nil
}

// Get returns a statement with decoded display names
func (s *PersistenceService) Get(ctx context.Context, companyID, id uuid.UUID) (*models.Statement, []models.LineItem, error) {
	st, items, err := s.store.GetStatement(ctx, companyID, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get statement: %w", err)
	}
	for i := range items {
		name, err := s.encoder.DecodeText(items[i].DisplayNameEnc)
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).
				Str("line_item_id", items[i].ID.String()).
				Msg("failed to decode display name")
			continue
		}
		items[i].DisplayName = name
	}
	return st, items, nil
}

// List returns the statements of a company
func (s *PersistenceService) List(ctx context.Context, companyID uuid.UUID) ([]models.Statement, error) {
	statements, err := s.store.ListStatements(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	return statements, nil
}

// Delete removes a statement and, through the store, its line items
func (s *PersistenceService) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	if err := s.store.DeleteStatement(ctx, companyID, id); err != nil {
		return fmt.Errorf("failed to delete statement: %w", err)
	}
	return nil
}
