package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/finlens-api/internal/middleware"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/store/memory"
)

const pnlCSV = "Account,January 2024,February 2024\n" +
	"Sales Revenue,\"125,000\",\"132,000\"\n" +
	"Salaries,\"40,000\",\"41,000\"\n"

// MockStorageService is a mock implementation of StorageService for testing
type MockStorageService struct {
	GenerateUploadKeyFunc    func(companyID uuid.UUID, filename string) (string, error)
	GeneratePresignedURLFunc func(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	DownloadFileFunc         func(ctx context.Context, key string) (io.ReadCloser, string, error)
}

func (m *MockStorageService) GenerateUploadKey(companyID uuid.UUID, filename string) (string, error) {
	if m.GenerateUploadKeyFunc != nil {
		return m.GenerateUploadKeyFunc(companyID, filename)
	}
	return fmt.Sprintf("uploads/%s/mock-%s", companyID, filename), nil
}

func (m *MockStorageService) GeneratePresignedURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if m.GeneratePresignedURLFunc != nil {
		return m.GeneratePresignedURLFunc(ctx, key, contentType, expiry)
	}
	return fmt.Sprintf("https://s3.amazonaws.com/bucket/%s?signature=mock", key), nil
}

func (m *MockStorageService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if m.DownloadFileFunc != nil {
		return m.DownloadFileFunc(ctx, key)
	}
	return nil, "", fmt.Errorf("file not found")
}

// testEnv wires real services on an in-memory store
type testEnv struct {
	store       *memory.Store
	storage     *MockStorageService
	source      *WorkbookSource
	engine      *services.Engine
	categorizer *services.Categorizer
	templates   *services.TemplateService
	statements  *services.PersistenceService
	registry    *services.SubcategoryRegistry
	scope       models.Scope
	companyID   uuid.UUID
}

// newTestEnv serves content for every key the company owns
func newTestEnv(t *testing.T, content string) *testEnv {
	t.Helper()

	store := memory.New()
	encoder, err := services.NewEphemeralEncoder()
	require.NoError(t, err)

	storage := &MockStorageService{
		DownloadFileFunc: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(strings.NewReader(content)), "text/csv", nil
		},
	}

	categorizer := services.NewCategorizer(store)
	engine := services.NewEngine(services.EngineConfig{DefaultLocale: "en-US"}, categorizer.Matcher())
	companyID := uuid.New()

	return &testEnv{
		store:       store,
		storage:     storage,
		source:      NewWorkbookSource(storage, services.NewFileValidator(1024*1024)),
		engine:      engine,
		categorizer: categorizer,
		templates:   services.NewTemplateService(store, engine),
		statements:  services.NewPersistenceService(store, encoder),
		registry:    services.NewSubcategoryRegistry(store),
		scope:       models.Scope{OrganizationID: uuid.New(), CompanyID: &companyID},
		companyID:   companyID,
	}
}

func (e *testEnv) fileKey() string {
	return fmt.Sprintf("uploads/%s/1699564800-abc-pnl.csv", e.companyID)
}

// app returns a fiber app whose requests carry scope
func (e *testEnv) app(scope models.Scope) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		middleware.WithScope(c, scope)
		return c.Next()
	})
	return app
}

func pnlMapping() models.Mapping {
	header := 0
	return models.Mapping{
		ConceptColumns: []models.ConceptColumn{{Index: 0, Role: models.RoleAccountName}},
		PeriodColumns: []models.PeriodColumn{
			{Index: 1, Label: "January 2024"},
			{Index: 2, Label: "February 2024"},
		},
		DataRange:     models.DataRange{StartRow: 1, EndRow: 2},
		HeaderRow:     &header,
		StatementType: models.StatementProfitLoss,
	}
}

// doJSON sends body as JSON and decodes the JSON response
func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &result), string(raw))
	}
	return resp, result
}

func dataOf(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	data, ok := result["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", result)
	return data
}
