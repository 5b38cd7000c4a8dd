package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// StatementsHandler extracts, commits and serves financial statements
type StatementsHandler struct {
	source      *WorkbookSource
	engine      *services.Engine
	categorizer *services.Categorizer
	templates   *services.TemplateService
	statements  *services.PersistenceService
}

// NewStatementsHandler creates a new statements handler instance
func NewStatementsHandler(
	source *WorkbookSource,
	engine *services.Engine,
	categorizer *services.Categorizer,
	templates *services.TemplateService,
	statements *services.PersistenceService,
) *StatementsHandler {
	return &StatementsHandler{
		source:      source,
		engine:      engine,
		categorizer: categorizer,
		templates:   templates,
		statements:  statements,
	}
}

// ExtractRequest selects a workbook and how to read it: an explicit mapping
// or a saved template
type ExtractRequest struct {
	SourceRequest
	Mapping    *models.Mapping `json:"mapping,omitempty"`
	TemplateID *uuid.UUID      `json:"template_id,omitempty"`
	Locale     string          `json:"locale,omitempty"`
}

// CommitRequest is an extraction to store. Force stores it despite
// validation errors.
type CommitRequest struct {
	ExtractRequest
	Currency string `json:"currency,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// run decodes the workbook and extracts it with the company's rules
func (h *StatementsHandler) run(c fiber.Ctx, scope models.Scope, companyID uuid.UUID, req ExtractRequest) (*services.ExtractionResult, string, error) {
	if req.TemplateID == nil && req.Mapping == nil {
		return nil, "", models.NewInputError("mapping or template_id is required")
	}

	wb, ref, err := h.source.Load(c, companyID, req.SourceRequest)
	if err != nil {
		return nil, "", err
	}

	rules, err := h.categorizer.RulesFor(c.Context(), scope)
	if err != nil {
		return nil, "", err
	}

	if req.TemplateID != nil {
		result, err := h.templates.Apply(c.Context(), scope, *req.TemplateID, wb.Grid, rules)
		return result, ref, err
	}

	result, err := h.engine.Run(c.Context(), services.RunInput{
		Grid:    wb.Grid,
		Mapping: *req.Mapping,
		Locale:  req.Locale,
		Rules:   rules,
	})
	return result, ref, err
}

// Extract previews an extraction without storing it
// POST /v1/statements/extract
func (h *StatementsHandler) Extract(c fiber.Ctx) error {
	var req ExtractRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	scope, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}

	result, _, err := h.run(c, scope, companyID, req)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, result)
}

// Commit extracts and stores a statement. A report with errors is refused
// unless force is set.
// POST /v1/statements
func (h *StatementsHandler) Commit(c fiber.Ctx) error {
	var req CommitRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	scope, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}

	result, ref, err := h.run(c, scope, companyID, req.ExtractRequest)
	if err != nil {
		return fail(c, err)
	}

	if result.Report.HasErrors() && !req.Force {
		return fail(c, utils.NewUnprocessableError(
			"VALIDATION_FAILED",
			"extraction has validation errors; resubmit with force to store it anyway",
			result.Report,
		))
	}

	st, err := h.statements.Persist(c.Context(), services.ShapeInput{
		CompanyID:     companyID,
		StatementType: result.StatementType,
		Currency:      req.Currency,
		SourceRef:     ref,
		TemplateID:    result.TemplateID,
		Lines:         result.Lines,
	})
	if err != nil {
		return fail(c, err)
	}

	if req.Force && result.Report.HasErrors() {
		logger.FromContext(c.Context()).Warn().
			Str("statement_id", st.ID.String()).
			Strs("errors", result.Report.Errors).
			Msg("statement stored despite validation errors")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"statement": st,
			"report":    result.Report,
		},
	})
}

// List returns the company's statements
// GET /v1/statements?page=1&page_size=20
func (h *StatementsHandler) List(c fiber.Ctx) error {
	_, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	all, err := h.statements.List(c.Context(), companyID)
	if err != nil {
		return fail(c, err)
	}

	from := min((page-1)*pageSize, len(all))
	to := min(from+pageSize, len(all))
	return utils.PaginatedResponse(c, all[from:to], page, pageSize, len(all))
}

// Get returns a statement with its line items
// GET /v1/statements/:id
func (h *StatementsHandler) Get(c fiber.Ctx) error {
	_, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	st, items, err := h.statements.Get(c.Context(), companyID, id)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"statement":  st,
		"line_items": items,
	})
}

// Delete removes a statement and its line items
// DELETE /v1/statements/:id
func (h *StatementsHandler) Delete(c fiber.Ctx) error {
	_, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	if err := h.statements.Delete(c.Context(), companyID, id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
