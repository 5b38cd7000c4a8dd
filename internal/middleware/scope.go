package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/models"
)

const (
	OrganizationHeader = "X-Organization-ID"
	CompanyHeader      = "X-Company-ID"

	scopeKey = "scope"
)

// Scope reads the tenant scope from the request headers. The organization is
// required; the company is optional.
func Scope() fiber.Handler {
	return func(c fiber.Ctx) error {
		orgID, err := uuid.Parse(c.Get(OrganizationHeader))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   OrganizationHeader + " header must be a UUID",
			})
		}

		scope := models.Scope{OrganizationID: orgID}
		if raw := c.Get(CompanyHeader); raw != "" {
			companyID, err := uuid.Parse(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"error":   CompanyHeader + " header must be a UUID",
				})
			}
			scope.CompanyID = &companyID
		}

		c.Locals(scopeKey, scope)

		log := logger.FromContext(c.Context()).With().Str("organization_id", orgID.String()).Logger()
		if scope.CompanyID != nil {
			log = log.With().Str("company_id", scope.CompanyID.String()).Logger()
		}
		c.SetContext(logger.WithContext(c.Context(), log))
		return c.Next()
	}
}

// ScopeFrom returns the scope stored by Scope
func ScopeFrom(c fiber.Ctx) (models.Scope, bool) {
	scope, ok := c.Locals(scopeKey).(models.Scope)
	return scope, ok
}

// WithScope stores scope the way Scope does
func WithScope(c fiber.Ctx, scope models.Scope) {
	c.Locals(scopeKey, scope)
}
