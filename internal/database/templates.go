package database

import (
	"context"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const templateColumns = `id, organization_id, company_id, name, mapping, statement_type, locale,
	usage_count, last_used_at, is_default, source_template_id, created_at, updated_at`

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	var statementType string
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.CompanyID, &t.Name, &t.Mapping, &statementType, &t.Locale,
		&t.UsageCount, &t.LastUsedAt, &t.IsDefault, &t.SourceTemplateID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.StatementType = models.StatementType(statementType)
	return &t, nil
}

func collectTemplates(rows pgx.Rows, op string) ([]models.Template, error) {
	defer rows.Close()
	out := make([]models.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}

// CreateTemplate inserts a template. Name and clone uniqueness come from the
// unique indexes and surface as ErrDuplicate.
func (s *Store) CreateTemplate(ctx context.Context, t *models.Template) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		t.ID, t.OrganizationID, t.CompanyID, t.Name, t.Mapping, string(t.StatementType), t.Locale,
		t.UsageCount, t.LastUsedAt, t.IsDefault, t.SourceTemplateID, t.CreatedAt, t.UpdatedAt,
	)
	return mapError("insert template", err)
}

// GetTemplate returns a template by id
func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get template", err)
	}
	return t, nil
}

// ListTemplates returns the organization's templates and, for a company
// scope, the company's own
func (s *Store) ListTemplates(ctx context.Context, scope models.Scope) ([]models.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE organization_id = $1 AND (company_id IS NULL OR company_id = $2)
		ORDER BY created_at
	`, scope.OrganizationID, scope.CompanyID)
	if err != nil {
		return nil, mapError("list templates", err)
	}
	return collectTemplates(rows, "list templates")
}

// FindClone returns the company's copy of an organization template
func (s *Store) FindClone(ctx context.Context, scope models.Scope, sourceID uuid.UUID) (*models.Template, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE organization_id = $1 AND company_id IS NOT DISTINCT FROM $2 AND source_template_id = $3
	`, scope.OrganizationID, scope.CompanyID, sourceID))
	if err != nil {
		return nil, mapError("find clone", err)
	}
	return t, nil
}

// SetDefault clears the defaults of (scope, statement type) and sets id in
// one transaction. Lock contention and index races surface as
// ErrTemplateConflict.
func (s *Store) SetDefault(ctx context.Context, scope models.Scope, statementType models.StatementType, id uuid.UUID) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Lock every template of the scope and type so concurrent writers queue
		rows, err := tx.Query(ctx, `
			SELECT id
			FROM templates
			WHERE organization_id = $1 AND company_id IS NOT DISTINCT FROM $2
			  AND (statement_type = $3 OR id = $4)
			FOR UPDATE
		`, scope.OrganizationID, scope.CompanyID, string(statementType), id)
		if err != nil {
			return err
		}
		found := false
		for rows.Next() {
			var locked uuid.UUID
			if err := rows.Scan(&locked); err != nil {
				rows.Close()
				return err
			}
			found = found || locked == id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if !found {
			return pgx.ErrNoRows
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE templates
			SET is_default = FALSE, updated_at = $5
			WHERE organization_id = $1 AND company_id IS NOT DISTINCT FROM $2
			  AND statement_type = $3 AND is_default AND id <> $4
		`, scope.OrganizationID, scope.CompanyID, string(statementType), id, now); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE templates SET is_default = TRUE, updated_at = $2 WHERE id = $1`, id, now)
		return err
	})
	return mapError("set default template", err)
}

// RecordUsage increments the usage count and keeps the latest use time
func (s *Store) RecordUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE templates
		SET usage_count = usage_count + 1,
		    last_used_at = GREATEST(COALESCE(last_used_at, $2), $2)
		WHERE id = $1
	`, id, usedAt)
	return rowsAffected(tag, err, "record template usage")
}

// DeleteTemplate removes a template owned by scope
func (s *Store) DeleteTemplate(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM templates
		WHERE id = $1 AND organization_id = $2 AND company_id IS NOT DISTINCT FROM $3
	`, id, scope.OrganizationID, scope.CompanyID)
	return rowsAffected(tag, err, "delete template")
}
