package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// SubcategoriesHandler serves the subcategory registry
type SubcategoriesHandler struct {
	registry *services.SubcategoryRegistry
}

// NewSubcategoriesHandler creates a new subcategories handler instance
func NewSubcategoriesHandler(registry *services.SubcategoryRegistry) *SubcategoriesHandler {
	return &SubcategoriesHandler{registry: registry}
}

// CreateSubcategoryRequest represents the request body for a new subcategory
type CreateSubcategoryRequest struct {
	Category   string `json:"category"`
	Value      string `json:"value"`
	Label      string `json:"label"`
	IsOverride bool   `json:"is_override"`
}

// List returns the organization and company subcategories combined
// GET /v1/subcategories
func (h *SubcategoriesHandler) List(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}

	subs, err := h.registry.List(c.Context(), scope)
	if err != nil {
		return fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"subcategories": subs,
		"count":         len(subs),
	})
}

// Create stores a subcategory in the request scope
// POST /v1/subcategories
func (h *SubcategoriesHandler) Create(c fiber.Ctx) error {
	scope, err := requireScope(c)
	if err != nil {
		return fail(c, err)
	}

	var req CreateSubcategoryRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}

	sub, err := h.registry.Create(c.Context(), scope, req.Category, req.Value, req.Label, req.IsOverride)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    sub,
	})
}
