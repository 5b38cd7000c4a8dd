package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// TemplatesHandler manages saved mappings
type TemplatesHandler struct {
	source      *WorkbookSource
	categorizer *services.Categorizer
	templates   *services.TemplateService
}

// NewTemplatesHandler creates a new templates handler instance
func NewTemplatesHandler(source *WorkbookSource, categorizer *services.Categorizer, templates *services.TemplateService) *TemplatesHandler {
	return &TemplatesHandler{
		source:      source,
		categorizer: categorizer,
		templates:   templates,
	}
}

// List returns the templates visible from the request scope
// GET /v1/templates
func (h *TemplatesHandler) List(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}

	templates, err := h.templates.List(c.Context(), scope)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"templates": templates,
		"count":     len(templates),
	})
}

// Create saves a mapping as a template of the request scope. Organization
// templates are created without the company header.
// POST /v1/templates
func (h *TemplatesHandler) Create(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}

	var in services.SaveTemplateInput
	if err := bindBody(c, &in); err != nil {
		return fail(c, err)
	}
	in.Scope = scope

	t, err := h.templates.Save(c.Context(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    t,
	})
}

// Get returns one template visible from the request scope
// GET /v1/templates/:id
func (h *TemplatesHandler) Get(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	t, err := h.templates.Get(c.Context(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, t)
}

// Resolve finds a template by name, preferring the company's own
// GET /v1/templates/resolve?name=
func (h *TemplatesHandler) Resolve(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	name := c.Query("name")
	if name == "" {
		return fail(c, utils.NewBadRequestError("name query parameter is required", nil))
	}

	t, err := h.templates.Resolve(c.Context(), scope, name)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, t)
}

// Default returns the default template of a statement type. A company
// without its own default receives a copy of the organization default.
// GET /v1/templates/default?statement_type=
func (h *TemplatesHandler) Default(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	statementType := models.StatementType(c.Query("statement_type", string(models.StatementProfitLoss)))

	t, err := h.templates.DefaultFor(c.Context(), scope, statementType)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, t)
}

// SetDefault marks a template as the default for its statement type
// PUT /v1/templates/:id/default
func (h *TemplatesHandler) SetDefault(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	if err := h.templates.SetDefault(c.Context(), scope, id); err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.Map{"id": id, "is_default": true})
}

// Select gives the company its own copy of an organization template
// POST /v1/templates/:id/select
func (h *TemplatesHandler) Select(c fiber.Ctx) error {
	scope, _, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	t, err := h.templates.SelectForCompany(c.Context(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, t)
}

// Apply reruns extraction on a workbook with the template's mapping
// POST /v1/templates/:id/apply
func (h *TemplatesHandler) Apply(c fiber.Ctx) error {
	var req SourceRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	scope, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	wb, _, err := h.source.Load(c, companyID, req)
	if err != nil {
		return fail(c, err)
	}
	rules, err := h.categorizer.RulesFor(c.Context(), scope)
	if err != nil {
		return fail(c, err)
	}

	result, err := h.templates.Apply(c.Context(), scope, id, wb.Grid, rules)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, result)
}

// Delete removes a template owned by the request scope
// DELETE /v1/templates/:id
func (h *TemplatesHandler) Delete(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	if err := h.templates.Delete(c.Context(), scope, id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

