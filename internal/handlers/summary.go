package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// SummaryHandler serves aggregated views of stored statements
type SummaryHandler struct {
	statements *services.PersistenceService
}

// NewSummaryHandler creates a new summary handler instance
func NewSummaryHandler(statements *services.PersistenceService) *SummaryHandler {
	return &SummaryHandler{statements: statements}
}

// GetSummary handles GET /v1/statements/:id/summary
func (h *SummaryHandler) GetSummary(c fiber.Ctx) error {
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
		"statement_id":   st.ID,
		"statement_type": st.StatementType,
		"currency":       st.Currency,
		"period_start":   st.PeriodStart.Format("2006-01-02"),
		"period_end":     st.PeriodEnd.Format("2006-01-02"),
		"summary":        services.Summarize(items),
	})
}
