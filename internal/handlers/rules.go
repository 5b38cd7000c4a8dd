package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// RulesHandler handles categorization rule management
type RulesHandler struct {
	categorizer *services.Categorizer
}

// NewRulesHandler creates a new rules handler instance
func NewRulesHandler(categorizer *services.Categorizer) *RulesHandler {
	return &RulesHandler{categorizer: categorizer}
}

// CreateRuleRequest represents the request body for creating a rule.
// OrganizationWide stores the rule for every company of the organization.
type CreateRuleRequest struct {
	Keyword          string `json:"keyword"`
	Category         string `json:"category"`
	Priority         int32  `json:"priority"`
	MatchType        string `json:"match_type"` // substring, regex, exact, fuzzy
	Inflow           *bool  `json:"inflow,omitempty"`
	OrganizationWide bool   `json:"organization_wide"`
}

// GetRules returns the rules owned by the request scope
// GET /v1/rules
func (h *RulesHandler) GetRules(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	if c.Query("level") == "organization" {
		scope = scope.Organization()
	}

	rules, err := h.categorizer.ListRules(c.Context(), scope)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule creates a new categorization rule
// POST /v1/rules
func (h *RulesHandler) CreateRule(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}

	var req CreateRuleRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.OrganizationWide {
		scope = scope.Organization()
	}

	rule := &models.CategoryRule{
		ID:             uuid.New(),
		OrganizationID: scope.OrganizationID,
		CompanyID:      scope.CompanyID,
		Keyword:        req.Keyword,
		Category:       req.Category,
		MatchType:      req.MatchType,
		Priority:       req.Priority,
		Inflow:         req.Inflow,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.categorizer.CreateRule(c.Context(), rule); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    rule,
	})
}

// DeleteRule removes a rule owned by the request scope
// DELETE /v1/rules/:id
func (h *RulesHandler) DeleteRule(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if c.Query("level") == "organization" {
		scope = scope.Organization()
	}

	if err := h.categorizer.DeleteRule(c.Context(), scope, id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
