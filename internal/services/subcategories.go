package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// SubcategoryStore persists subcategories. ListSubcategories returns the
// entries owned by exactly the given scope.
type SubcategoryStore interface {
	ListSubcategories(ctx context.Context, scope models.Scope) ([]models.Subcategory, error)
	CreateSubcategory(ctx context.Context, sub *models.Subcategory) error
}

// CombineSubcategories merges organization and company entries. A company
// entry flagged as override suppresses organization entries with the same
// value; the result is sorted by category, then value.
func CombineSubcategories(org, company []models.Subcategory) []models.Subcategory {
	overridden := make(map[string]bool)
	for _, c := range company {
		if c.IsOverride {
			overridden[strings.ToLower(c.Value)] = true
		}
	}

	combined := make([]models.Subcategory, 0, len(org)+len(company))
	for _, o := range org {
		if !overridden[strings.ToLower(o.Value)] {
			combined = append(combined, o)
		}
	}
	combined = append(combined, company...)

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Category != combined[j].Category {
			return combined[i].Category < combined[j].Category
		}
		return combined[i].Value < combined[j].Value
	})
	return combined
}

// SubcategoryRegistry serves combined subcategory listings per company
type SubcategoryRegistry struct {
	store SubcategoryStore
	cache *gocache.Cache
	now   func() time.Time
}

// NewSubcategoryRegistry creates a new registry instance
func NewSubcategoryRegistry(store SubcategoryStore) *SubcategoryRegistry {
	return &SubcategoryRegistry{
		store: store,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List returns the subcategories visible from scope
func (r *SubcategoryRegistry) List(ctx context.Context, scope models.Scope) ([]models.Subcategory, error) {
	key := scopeKey(scope)
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]models.Subcategory), nil
	}

	org, err := r.store.ListSubcategories(ctx, scope.Organization())
	if err != nil {
		return nil, fmt.Errorf("failed to list organization subcategories: %w", err)
	}

	var company []models.Subcategory
	if scope.IsCompany() {
		company, err = r.store.ListSubcategories(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to list company subcategories: %w", err)
		}
	}

	combined := CombineSubcategories(org, company)
	r.cache.SetDefault(key, combined)
	return combined, nil
}

// Create stores a subcategory in scope. Organization entries affect every
// company, so the whole cache is dropped for them.
func (r *SubcategoryRegistry) Create(ctx context.Context, scope models.Scope, category, value, label string, isOverride bool) (*models.Subcategory, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, models.NewInputError("subcategory value is required")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, models.NewInputError("subcategory category is required")
	}
	if isOverride && !scope.IsCompany() {
		return nil, models.NewInputError("only company subcategories can override")
	}
	if strings.TrimSpace(label) == "" {
		label = value
	}

	sub := &models.Subcategory{
		ID:             uuid.New(),
		OrganizationID: scope.OrganizationID,
		CompanyID:      scope.CompanyID,
		Category:       category,
		Value:          value,
		Label:          strings.TrimSpace(label),
		IsOverride:     isOverride,
		CreatedAt:      r.now(),
	}
	if err := r.store.CreateSubcategory(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subcategory: %w", err)
	}

	if scope.IsCompany() {
		r.cache.Delete(scopeKey(scope))
	} else {
		r.cache.Flush()
	}
	return sub, nil
}
