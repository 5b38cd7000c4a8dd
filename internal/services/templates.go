package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
)

const setDefaultAttempts = 3

// TemplateStore persists templates. ListTemplates returns the organization's
// templates plus, for a company scope, the company's own. SetDefault must
// clear the previous default of (scope, statement type) and set the new one
// atomically, returning ErrTemplateConflict when it cannot. RecordUsage must
// increment the usage count in the store, never read-modify-write.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error)
	ListTemplates(ctx context.Context, scope models.Scope) ([]models.Template, error)
	FindClone(ctx context.Context, scope models.Scope, sourceID uuid.UUID) (*models.Template, error)
	SetDefault(ctx context.Context, scope models.Scope, statementType models.StatementType, id uuid.UUID) error
	RecordUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error
	DeleteTemplate(ctx context.Context, scope models.Scope, id uuid.UUID) error
}

// TemplateService saves, resolves and reapplies mappings
type TemplateService struct {
	store  TemplateStore
	engine *Engine
	now    func() time.Time
}

// SaveTemplateInput describes a mapping to keep for reuse
type SaveTemplateInput struct {
	Scope         models.Scope         `json:"-"`
	Name          string               `json:"name"`
	Mapping       models.Mapping       `json:"mapping"`
	StatementType models.StatementType `json:"statement_type"`
	Locale        string               `json:"locale"`
	IsDefault     bool                 `json:"is_default"`
}

// NewTemplateService creates a new template service instance
func NewTemplateService(store TemplateStore, engine *Engine) *TemplateService {
	return &TemplateService{
		store:  store,
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save stores a mapping under scope
func (s *TemplateService) Save(ctx context.Context, in SaveTemplateInput) (*models.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewInputError("template name is required")
	}
	if in.StatementType == "" {
		in.StatementType = in.Mapping.StatementType
	}
	if !in.StatementType.Valid() {
		return nil, models.NewInputError("unknown statement type %q", in.StatementType)
	}
	if err := in.Mapping.ValidateShape(); err != nil {
		return nil, err
	}
	if in.Locale == "" {
		in.Locale = s.engine.cfg.DefaultLocale
	}

	now := s.now()
	mapping := in.Mapping
	mapping.StatementType = in.StatementType
	t := &models.Template{
		ID:             uuid.New(),
		OrganizationID: in.Scope.OrganizationID,
		CompanyID:      in.Scope.CompanyID,
		Name:           name,
		Mapping:        mapping,
		StatementType:  in.StatementType,
		Locale:         in.Locale,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	if in.IsDefault {
		if err := s.SetDefault(ctx, in.Scope, t.ID); err != nil {
			// Leave nothing behind so the caller can retry the whole save
			if delErr := s.store.DeleteTemplate(context.WithoutCancel(ctx), in.Scope, t.ID); delErr != nil {
				logger.FromContext(ctx).Error().Err(delErr).
					Str("template_id", t.ID.String()).
					Msg("failed to remove template after default conflict")
			}
			return nil, err
		}
		t.IsDefault = true
	}

	logger.FromContext(ctx).Info().
		Str("template_id", t.ID.String()).
		Str("name", t.Name).
		Bool("company_scope", in.Scope.IsCompany()).
		Msg("template saved")
	return t, nil
}

// Get returns a template visible from scope
func (s *TemplateService) Get(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Template, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if !t.VisibleFrom(scope) {
		return nil, fmt.Errorf("failed to get template: %w", models.ErrNotFound)
	}
	return t, nil
}

// SetDefault makes id the only default of its statement type in scope. The
// template must be owned by scope itself.
func (s *TemplateService) SetDefault(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	t, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if !t.InScope(scope) {
		return models.NewInputError("template belongs to the organization; select it for the company first")
	}

	log := logger.FromContext(ctx)
	for attempt := 1; attempt <= setDefaultAttempts; attempt++ {
		err = s.store.SetDefault(ctx, scope, t.StatementType, id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrTemplateConflict) {
			return fmt.Errorf("failed to set default template: %w", err)
		}
		log.Warn().
			Str("template_id", id.String()).
			Int("attempt", attempt).
			Msg("default template conflict, retrying")
	}
	return fmt.Errorf("failed to set default template after %d attempts: %w", setDefaultAttempts, models.ErrTemplateConflict)
}

// Apply reruns extraction on grid with the stored mapping. An organization
// template applied from a company scope is first copied to the company, and
// the copy is the one used. Usage is recorded only when the run succeeds.
func (s *TemplateService) Apply(ctx context.Context, scope models.Scope, id uuid.UUID, grid models.Grid, rules RuleSet) (*ExtractionResult, error) {
	t, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !t.InScope(scope) && scope.IsCompany() {
		if t, err = s.SelectForCompany(ctx, scope, t.ID); err != nil {
			return nil, err
		}
	}

	mapping := t.Mapping
	mapping.StatementType = t.StatementType
	result, err := s.engine.Run(ctx, RunInput{
		Grid:    grid,
		Mapping: mapping,
		Locale:  t.Locale,
		Rules:   rules,
	})
	if err != nil {
		return nil, err
	}
	usedID := t.ID
	result.TemplateID = &usedID

	if err := s.store.RecordUsage(ctx, t.ID, s.now()); err != nil {
		// Usage counts are advisory; the extraction already succeeded
		logger.FromContext(ctx).Warn().Err(err).
			Str("template_id", t.ID.String()).
			Msg("failed to record template usage")
	}
	return result, nil
}

// List returns the templates visible from scope. A company template hides an
// organization template with the same name.
func (s *TemplateService) List(ctx context.Context, scope models.Scope) ([]models.Template, error) {
	all, err := s.store.ListTemplates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	shadowed := make(map[string]bool)
	for _, t := range all {
		if t.CompanyID != nil && t.InScope(scope) {
			shadowed[strings.ToLower(t.Name)] = true
		}
	}

	visible := make([]models.Template, 0, len(all))
	for _, t := range all {
		if !t.VisibleFrom(scope) {
			continue
		}
		if t.CompanyID == nil && shadowed[strings.ToLower(t.Name)] {
			continue
		}
		visible = append(visible, t)
	}

	sort.Slice(visible, func(i, j int) bool {
		if visible[i].Name != visible[j].Name {
			return visible[i].Name < visible[j].Name
		}
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})
	return visible, nil
}

// Resolve finds a template by name, preferring the company's own
func (s *TemplateService) Resolve(ctx context.Context, scope models.Scope, name string) (*models.Template, error) {
	templates, err := s.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if strings.EqualFold(templates[i].Name, strings.TrimSpace(name)) {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("failed to resolve template %q: %w", name, models.ErrNotFound)
}

// DefaultFor returns the default template of statementType for scope. A
// company's own default wins; otherwise the organization default is used,
// copied to the company when scope is a company.
func (s *TemplateService) DefaultFor(ctx context.Context, scope models.Scope, statementType models.StatementType) (*models.Template, error) {
	if !statementType.Valid() {
		return nil, models.NewInputError("unknown statement type %q", statementType)
	}

	all, err := s.store.ListTemplates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var orgDefault *models.Template
	for i := range all {
		t := &all[i]
		if !t.IsDefault || t.StatementType != statementType || !t.VisibleFrom(scope) {
			continue
		}
		if t.InScope(scope) {
			return t, nil
		}
		if t.CompanyID == nil {
			orgDefault = t
		}
	}
	if orgDefault == nil {
		return nil, fmt.Errorf("no default %s template: %w", statementType, models.ErrNotFound)
	}
	if !scope.IsCompany() {
		return orgDefault, nil
	}
	return s.SelectForCompany(ctx, scope, orgDefault.ID)
}

// SelectForCompany gives the company its own copy of an organization
// template. Selecting the same template again returns the existing copy.
func (s *TemplateService) SelectForCompany(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Template, error) {
	if !scope.IsCompany() {
		return nil, models.NewInputError("selecting a template requires a company scope")
	}

	src, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if src.InScope(scope) {
		return src, nil
	}

	if existing, err := s.store.FindClone(ctx, scope, src.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up template copy: %w", err)
	}

	now := s.now()
	sourceID := src.ID
	clone := *src
	clone.ID = uuid.New()
	clone.CompanyID = scope.CompanyID
	clone.SourceTemplateID = &sourceID
	clone.UsageCount = 0
	clone.LastUsedAt = nil
	clone.IsDefault = false
	clone.CreatedAt = now
	clone.UpdatedAt = now

	if err := s.store.CreateTemplate(ctx, &clone); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// A concurrent selection won the race
			if existing, findErr := s.store.FindClone(ctx, scope, src.ID); findErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to copy template: %w", err)
	}

	logger.FromContext(ctx).Info().
		Str("template_id", clone.ID.String()).
		Str("source_template_id", src.ID.String()).
		Msg("organization template copied to company")
	return &clone, nil
}

// Delete removes a template owned by scope
func (s *TemplateService) Delete(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	if err := s.store.DeleteTemplate(ctx, scope, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}
