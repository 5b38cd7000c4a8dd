package database

import (
	"context"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
)

// ListSubcategories returns the entries owned by exactly scope
func (s *Store) ListSubcategories(ctx context.Context, scope models.Scope) ([]models.Subcategory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, company_id, category, value, label, is_override, created_at
		FROM subcategories
		WHERE organization_id = $1 AND company_id IS NOT DISTINCT FROM $2
		ORDER BY category, value
	`, scope.OrganizationID, scope.CompanyID)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	defer rows.Close()

	out := make([]models.Subcategory, 0)
	for rows.Next() {
		var sub models.Subcategory
		if err := rows.Scan(
			&sub.ID, &sub.OrganizationID, &sub.CompanyID, &sub.Category,
			&sub.Value, &sub.Label, &sub.IsOverride, &sub.CreatedAt,
		); err != nil {
			return nil, mapError("scan subcategory", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list subcategories", err)
	}
	return out, nil
}

// CreateSubcategory stores an entry; (scope, category, value) is unique
func (s *Store) CreateSubcategory(ctx context.Context, sub *models.Subcategory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subcategories (id, organization_id, company_id, category, value, label, is_override, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sub.ID, sub.OrganizationID, sub.CompanyID, sub.Category, sub.Value, sub.Label, sub.IsOverride, sub.CreatedAt)
	return mapError("insert subcategory", err)
}

// ListRules returns the rules owned by exactly scope, highest priority first
func (s *Store) ListRules(ctx context.Context, scope models.Scope) ([]models.CategoryRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, company_id, keyword, category, match_type, priority, inflow, created_at
		FROM category_rules
		WHERE organization_id = $1 AND company_id IS NOT DISTINCT FROM $2
		ORDER BY priority DESC, created_at
	`, scope.OrganizationID, scope.CompanyID)
	if err != nil {
		return nil, mapError("list rules", err)
	}
	defer rows.Close()

	out := make([]models.CategoryRule, 0)
	for rows.Next() {
		var r models.CategoryRule
		if err := rows.Scan(
			&r.ID, &r.OrganizationID, &r.CompanyID, &r.Keyword, &r.Category,
			&r.MatchType, &r.Priority, &r.Inflow, &r.CreatedAt,
		); err != nil {
			return nil, mapError("scan rule", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list rules", err)
	}
	return out, nil
}

// CreateRule stores a rule
func (s *Store) CreateRule(ctx context.Context, rule *models.CategoryRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO category_rules (id, organization_id, company_id, keyword, category, match_type, priority, inflow, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rule.ID, rule.OrganizationID, rule.CompanyID, rule.Keyword, rule.Category, rule.MatchType, rule.Priority, rule.Inflow, rule.CreatedAt)
	return mapError("insert rule", err)
}

// DeleteRule removes a rule owned by scope
func (s *Store) DeleteRule(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM category_rules
		WHERE id = $1 AND organization_id = $2 AND company_id IS NOT DISTINCT FROM $3
	`, id, scope.OrganizationID, scope.CompanyID)
	return rowsAffected(tag, err, "delete rule")
}
