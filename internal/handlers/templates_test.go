package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
)

func templatesApp(env *testEnv, scope models.Scope) *fiber.App {
	handler := NewTemplatesHandler(env.source, env.categorizer, env.templates)

	app := env.app(scope)
	app.Get("/templates", handler.List)
	app.Post("/templates", handler.Create)
	app.Get("/templates/resolve", handler.Resolve)
	app.Get("/templates/default", handler.Default)
	app.Get("/templates/:id", handler.Get)
	app.Put("/templates/:id/default", handler.SetDefault)
	app.Post("/templates/:id/select", handler.Select)
	app.Post("/templates/:id/apply", handler.Apply)
	app.Delete("/templates/:id", handler.Delete)
	return app
}

func saveTemplate(t *testing.T, env *testEnv, scope models.Scope, name string) *models.Template {
	t.Helper()
	tpl, err := env.templates.Save(t.Context(), services.SaveTemplateInput{
		Scope:         scope,
		Name:          name,
		Mapping:       pnlMapping(),
		StatementType: models.StatementProfitLoss,
	})
	require.NoError(t, err)
	return tpl
}

func TestCreateTemplate(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	app := templatesApp(env, env.scope)

	resp, result := doJSON(t, app, "POST", "/templates", map[string]any{
		"name":       "Monthly P&L",
		"mapping":    pnlMapping(),
		"is_default": true,
	})

	require.Equal(t, fiber.StatusCreated, resp.StatusCode, result)
	data := dataOf(t, result)
	assert.Equal(t, "Monthly P&L", data["name"])
	assert.Equal(t, env.companyID.String(), data["company_id"])
	assert.Equal(t, string(models.StatementProfitLoss), data["statement_type"])
	assert.Equal(t, true, data["is_default"])
	assert.Equal(t, "en-US", data["locale"])
}

func TestCreateTemplate_Rejections(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	app := templatesApp(env, env.scope)
	saveTemplate(t, env, env.scope, "Monthly P&L")

	resp, _ := doJSON(t, app, "POST", "/templates", map[string]any{"mapping": pnlMapping()})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, result := doJSON(t, app, "POST", "/templates", map[string]any{
		"name":    "monthly p&l",
		"mapping": pnlMapping(),
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", result["code"])
}

func TestListTemplates_CompanyShadowsOrganization(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	org := models.Scope{OrganizationID: env.scope.OrganizationID}
	saveTemplate(t, env, org, "Monthly P&L")
	saveTemplate(t, env, org, "Cash Flow")
	own := saveTemplate(t, env, env.scope, "Monthly P&L")
	app := templatesApp(env, env.scope)

	resp, result := doJSON(t, app, "GET", "/templates", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := dataOf(t, result)
	assert.Equal(t, float64(2), data["count"])

	resp, result = doJSON(t, app, "GET", "/templates/resolve?name=monthly%20p%26l", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, own.ID.String(), dataOf(t, result)["id"])
}

func TestResolveTemplate_Errors(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	app := templatesApp(env, env.scope)

	resp, _ := doJSON(t, app, "GET", "/templates/resolve", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/templates/resolve?name=missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSetDefaultTemplate_ExactlyOne(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	first := saveTemplate(t, env, env.scope, "First")
	second := saveTemplate(t, env, env.scope, "Second")
	app := templatesApp(env, env.scope)

	for _, id := range []string{first.ID.String(), second.ID.String()} {
		resp, _ := doJSON(t, app, "PUT", "/templates/"+id+"/default", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	got, err := env.templates.Get(t.Context(), env.scope, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
	got, err = env.templates.Get(t.Context(), env.scope, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}

func TestSetDefaultTemplate_ConflictExhausted(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	tpl := saveTemplate(t, env, env.scope, "First")
	env.store.FailSetDefault = 10
	app := templatesApp(env, env.scope)

	resp, result := doJSON(t, app, "PUT", "/templates/"+tpl.ID.String()+"/default", nil)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TEMPLATE_CONFLICT", result["code"])
	assert.Equal(t, true, result["retryable"])
}

func TestDefaultTemplate_CompanyGetsOrganizationCopy(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	org := models.Scope{OrganizationID: env.scope.OrganizationID}
	orgDefault, err := env.templates.Save(t.Context(), services.SaveTemplateInput{
		Scope:         org,
		Name:          "Shared P&L",
		Mapping:       pnlMapping(),
		StatementType: models.StatementProfitLoss,
		IsDefault:     true,
	})
	require.NoError(t, err)
	app := templatesApp(env, env.scope)

	resp, result := doJSON(t, app, "GET", "/templates/default?statement_type=profit_loss", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, result)
	first := dataOf(t, result)
	assert.NotEqual(t, orgDefault.ID.String(), first["id"])
	assert.Equal(t, orgDefault.ID.String(), first["source_template_id"])

	resp, result = doJSON(t, app, "GET", "/templates/default", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, first["id"], dataOf(t, result)["id"])

	resp, _ = doJSON(t, app, "GET", "/templates/default?statement_type=cash_flow", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/templates/default?statement_type=ledger", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestApplyTemplate_OrganizationTemplateCopiedForCompany(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	org := models.Scope{OrganizationID: env.scope.OrganizationID}
	orgTemplate := saveTemplate(t, env, org, "Shared P&L")
	app := templatesApp(env, env.scope)

	resp, result := doJSON(t, app, "POST", "/templates/"+orgTemplate.ID.String()+"/apply", map[string]any{
		"file_key": env.fileKey(),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, result)
	usedID := dataOf(t, result)["template_id"]
	assert.NotEqual(t, orgTemplate.ID.String(), usedID)

	shared, err := env.templates.Get(t.Context(), org, orgTemplate.ID)
	require.NoError(t, err)
	assert.Zero(t, shared.UsageCount)
}

func TestSelectTemplate_ClonesOnce(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	orgTemplate := saveTemplate(t, env, models.Scope{OrganizationID: env.scope.OrganizationID}, "Shared P&L")
	app := templatesApp(env, env.scope)

	resp, result := doJSON(t, app, "POST", "/templates/"+orgTemplate.ID.String()+"/select", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, result)
	first := dataOf(t, result)
	assert.NotEqual(t, orgTemplate.ID.String(), first["id"])
	assert.Equal(t, orgTemplate.ID.String(), first["source_template_id"])

	resp, result = doJSON(t, app, "POST", "/templates/"+orgTemplate.ID.String()+"/select", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, first["id"], dataOf(t, result)["id"])
}

func TestSelectTemplate_RequiresCompany(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	org := models.Scope{OrganizationID: env.scope.OrganizationID}
	orgTemplate := saveTemplate(t, env, org, "Shared P&L")
	app := templatesApp(env, org)

	resp, _ := doJSON(t, app, "POST", "/templates/"+orgTemplate.ID.String()+"/select", nil)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestApplyTemplate(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	tpl := saveTemplate(t, env, env.scope, "Monthly P&L")
	app := templatesApp(env, env.scope)

	for range 2 {
		resp, result := doJSON(t, app, "POST", "/templates/"+tpl.ID.String()+"/apply", map[string]any{
			"file_key": env.fileKey(),
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, result)
		assert.Len(t, dataOf(t, result)["lines"], 2)
	}

	got, err := env.templates.Get(t.Context(), env.scope, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UsageCount)
	assert.NotNil(t, got.LastUsedAt)
}

func TestApplyTemplate_StructuralFailureNotCounted(t *testing.T) {
	env := newTestEnv(t, "Account\n")
	tpl := saveTemplate(t, env, env.scope, "Monthly P&L")
	app := templatesApp(env, env.scope)

	resp, _ := doJSON(t, app, "POST", "/templates/"+tpl.ID.String()+"/apply", map[string]any{
		"file_key": env.fileKey(),
	})

	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	got, err := env.templates.Get(t.Context(), env.scope, tpl.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsageCount)
}

func TestDeleteTemplate(t *testing.T) {
	env := newTestEnv(t, pnlCSV)
	org := models.Scope{OrganizationID: env.scope.OrganizationID}
	orgTemplate := saveTemplate(t, env, org, "Shared P&L")
	own := saveTemplate(t, env, env.scope, "Mine")
	app := templatesApp(env, env.scope)

	resp, _ := doJSON(t, app, "DELETE", "/templates/"+orgTemplate.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, "DELETE", "/templates/"+own.ID.String(), nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/templates/"+own.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
