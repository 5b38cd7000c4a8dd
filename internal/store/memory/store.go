// Package memory implements every store interface in process. It backs tests
// and local runs started with USE_MEMORY_STORE.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
)

// Store holds statements, templates, subcategories and category rules
type Store struct {
	mu sync.RWMutex

	statements    map[uuid.UUID]models.Statement
	lineItems     map[uuid.UUID][]models.LineItem // statement id -> items
	templates     map[uuid.UUID]models.Template
	subcategories []models.Subcategory
	rules         []models.CategoryRule

	// FailSetDefault makes the next n SetDefault calls return ErrTemplateConflict
	FailSetDefault int
}

// New creates an empty store
func New() *Store {
	return &Store{
		statements: make(map[uuid.UUID]models.Statement),
		lineItems:  make(map[uuid.UUID][]models.LineItem),
		templates:  make(map[uuid.UUID]models.Template),
	}
}

func sameScope(orgID uuid.UUID, companyID *uuid.UUID, scope models.Scope) bool {
	if orgID != scope.OrganizationID {
		return false
	}
	if companyID == nil || scope.CompanyID == nil {
		return companyID == nil && scope.CompanyID == nil
	}
	return *companyID == *scope.CompanyID
}

// CreateStatement stores a statement with its items
func (s *Store) CreateStatement(ctx context.Context, st *models.Statement, items []models.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statements[st.ID]; exists {
		return models.ErrDuplicate
	}
	s.statements[st.ID] = *st
	s.lineItems[st.ID] = append([]models.LineItem(nil), items...)
	return nil
}

// GetStatement returns a statement of the company with its items ordered by row
func (s *Store) GetStatement(ctx context.Context, companyID, id uuid.UUID) (*models.Statement, []models.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok || st.CompanyID != companyID {
		return nil, nil, models.ErrNotFound
	}
	items := append([]models.LineItem(nil), s.lineItems[id]...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RowIndex != items[j].RowIndex {
			return items[i].RowIndex < items[j].RowIndex
		}
		return items[i].PeriodDate.Before(items[j].PeriodDate)
	})
	return &st, items, nil
}

// ListStatements returns the company's statements, newest first
func (s *Store) ListStatements(ctx context.Context, companyID uuid.UUID) ([]models.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Statement, 0)
	for _, st := range s.statements {
		if st.CompanyID == companyID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteStatement removes a statement and its items
func (s *Store) DeleteStatement(ctx context.Context, companyID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[id]
	if !ok || st.CompanyID != companyID {
		return models.ErrNotFound
	}
	delete(s.statements, id)
	delete(s.lineItems, id)
	return nil
}

// CreateTemplate stores a template. Names are unique per scope, and a company
// holds at most one copy of each organization template.
func (s *Store) CreateTemplate(ctx context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.templates {
		if !sameScope(existing.OrganizationID, existing.CompanyID, t.Scope()) {
			continue
		}
		if strings.EqualFold(existing.Name, t.Name) {
			return models.ErrDuplicate
		}
		if t.SourceTemplateID != nil && existing.SourceTemplateID != nil &&
			*existing.SourceTemplateID == *t.SourceTemplateID {
			return models.ErrDuplicate
		}
	}
	s.templates[t.ID] = *t
	return nil
}

// GetTemplate returns a template by id
func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

// ListTemplates returns the organization's templates and, for a company
// scope, the company's own
func (s *Store) ListTemplates(ctx context.Context, scope models.Scope) ([]models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Template, 0)
	for _, t := range s.templates {
		if t.OrganizationID != scope.OrganizationID {
			continue
		}
		if t.CompanyID == nil || t.InScope(scope) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FindClone returns the company's copy of an organization template
func (s *Store) FindClone(ctx context.Context, scope models.Scope, sourceID uuid.UUID) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.SourceTemplateID != nil && *t.SourceTemplateID == sourceID && t.InScope(scope) {
			return &t, nil
		}
	}
	return nil, models.ErrNotFound
}

// SetDefault clears the defaults of (scope, statement type) and sets id under
// one lock
func (s *Store) SetDefault(ctx context.Context, scope models.Scope, statementType models.StatementType, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSetDefault > 0 {
		s.FailSetDefault--
		return models.ErrTemplateConflict
	}

	target, ok := s.templates[id]
	if !ok || !target.InScope(scope) {
		return models.ErrNotFound
	}

	now := time.Now().UTC()
	for key, t := range s.templates {
		if t.IsDefault && t.StatementType == statementType && t.InScope(scope) && key != id {
			t.IsDefault = false
			t.UpdatedAt = now
			s.templates[key] = t
		}
	}
	target.IsDefault = true
	target.UpdatedAt = now
	s.templates[id] = target
	return nil
}

// RecordUsage increments the usage count and keeps the latest use time
func (s *Store) RecordUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return models.ErrNotFound
	}
	t.UsageCount++
	if t.LastUsedAt == nil || usedAt.After(*t.LastUsedAt) {
		last := usedAt
		t.LastUsedAt = &last
	}
	s.templates[id] = t
	return nil
}

// DeleteTemplate removes a template owned by scope
func (s *Store) DeleteTemplate(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok || !t.InScope(scope) {
		return models.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

// ListSubcategories returns the entries owned by exactly scope
func (s *Store) ListSubcategories(ctx context.Context, scope models.Scope) ([]models.Subcategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Subcategory, 0)
	for _, sub := range s.subcategories {
		if sameScope(sub.OrganizationID, sub.CompanyID, scope) {
			out = append(out, sub)
		}
	}
	return out, nil
}

// CreateSubcategory stores an entry; (scope, category, value) is unique
func (s *Store) CreateSubcategory(ctx context.Context, sub *models.Subcategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := models.Scope{OrganizationID: sub.OrganizationID, CompanyID: sub.CompanyID}
	for _, existing := range s.subcategories {
		if sameScope(existing.OrganizationID, existing.CompanyID, scope) &&
			existing.Category == sub.Category && strings.EqualFold(existing.Value, sub.Value) {
			return models.ErrDuplicate
		}
	}
	s.subcategories = append(s.subcategories, *sub)
	return nil
}

// ListRules returns the rules owned by exactly scope, highest priority first
func (s *Store) ListRules(ctx context.Context, scope models.Scope) ([]models.CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CategoryRule, 0)
	for _, r := range s.rules {
		if sameScope(r.OrganizationID, r.CompanyID, scope) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out, nil
}

// CreateRule stores a rule
func (s *Store) CreateRule(ctx context.Context, rule *models.CategoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	s.rules = append(s.rules, *rule)
	return nil
}

// DeleteRule removes a rule owned by scope
func (s *Store) DeleteRule(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == id && sameScope(r.OrganizationID, r.CompanyID, scope) {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}
