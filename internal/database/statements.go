package database

import (
	"context"
	"fmt"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var lineItemColumns = []string{
	"id", "statement_id", "row_index", "account_code", "category", "subcategory",
	"period_label", "period_date", "amount", "is_subtotal", "display_name_enc", "metadata_enc",
}

// CreateStatement writes the header and every line item in one transaction
func (s *Store) CreateStatement(ctx context.Context, st *models.Statement, items []models.LineItem) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO statements (id, company_id, statement_type, currency, period_start, period_end, source_ref, template_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`,
			st.ID, st.CompanyID, string(st.StatementType), st.Currency,
			st.PeriodStart, st.PeriodEnd, st.SourceRef, st.TemplateID, st.CreatedAt,
		).Scan(&st.CreatedAt)
		if err != nil {
			return mapError("insert statement", err)
		}

		rows := make([][]any, len(items))
		for i, it := range items {
			rows[i] = []any{
				it.ID, st.ID, int32(it.RowIndex), it.AccountCode, it.Category, it.Subcategory,
				it.PeriodLabel, it.PeriodDate, it.Amount, it.IsSubtotal, it.DisplayNameEnc, it.MetadataEnc,
			}
		}
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"line_items"}, lineItemColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return mapError("copy line items", err)
		}
		if int(copied) != len(items) {
			return fmt.Errorf("failed to copy line items: wrote %d of %d", copied, len(items))
		}
		return nil
	})
}

// GetStatement returns a statement of the company with its items ordered by row
func (s *Store) GetStatement(ctx context.Context, companyID, id uuid.UUID) (*models.Statement, []models.LineItem, error) {
	var st models.Statement
	var statementType string
	err := s.pool.QueryRow(ctx, `
		SELECT id, company_id, statement_type, currency, period_start, period_end, source_ref, template_id, created_at
		FROM statements
		WHERE id = $1 AND company_id = $2
	`, id, companyID).Scan(
		&st.ID, &st.CompanyID, &statementType, &st.Currency,
		&st.PeriodStart, &st.PeriodEnd, &st.SourceRef, &st.TemplateID, &st.CreatedAt,
	)
	if err != nil {
		return nil, nil, mapError("get statement", err)
	}
	st.StatementType = models.StatementType(statementType)

	rows, err := s.pool.Query(ctx, `
		SELECT id, statement_id, row_index, account_code, category, subcategory,
		       period_label, period_date, amount, is_subtotal, display_name_enc, metadata_enc
		FROM line_items
		WHERE statement_id = $1
		ORDER BY row_index, period_date
	`, id)
	if err != nil {
		return nil, nil, mapError("list line items", err)
	}
	defer rows.Close()

	items := make([]models.LineItem, 0)
	for rows.Next() {
		var it models.LineItem
		var rowIndex int32
		if err := rows.Scan(
			&it.ID, &it.StatementID, &rowIndex, &it.AccountCode, &it.Category, &it.Subcategory,
			&it.PeriodLabel, &it.PeriodDate, &it.Amount, &it.IsSubtotal, &it.DisplayNameEnc, &it.MetadataEnc,
		); err != nil {
			return nil, nil, mapError("scan line item", err)
		}
		it.RowIndex = int(rowIndex)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapError("list line items", err)
	}
	return &st, items, nil
}

// ListStatements returns the company's statements, newest first
func (s *Store) ListStatements(ctx context.Context, companyID uuid.UUID) ([]models.Statement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, statement_type, currency, period_start, period_end, source_ref, template_id, created_at
		FROM statements
		WHERE company_id = $1
		ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, mapError("list statements", err)
	}
	defer rows.Close()

	out := make([]models.Statement, 0)
	for rows.Next() {
		var st models.Statement
		var statementType string
		if err := rows.Scan(
			&st.ID, &st.CompanyID, &statementType, &st.Currency,
			&st.PeriodStart, &st.PeriodEnd, &st.SourceRef, &st.TemplateID, &st.CreatedAt,
		); err != nil {
			return nil, mapError("scan statement", err)
		}
		st.StatementType = models.StatementType(statementType)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list statements", err)
	}
	return out, nil
}

// DeleteStatement removes a statement; its items go with it
func (s *Store) DeleteStatement(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM statements WHERE id = $1 AND company_id = $2`, id, companyID)
	return rowsAffected(tag, err, "delete statement")
}
