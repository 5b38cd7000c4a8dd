package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

const (
	// PresignedURLExpiryMinutes is the expiry time for presigned URLs in minutes
	PresignedURLExpiryMinutes = 15
	// PresignedURLExpirySeconds is the expiry time for presigned URLs in seconds
	PresignedURLExpirySeconds = PresignedURLExpiryMinutes * 60

	previewRows = 20
)

// AllowedContentTypes defines the content types that are allowed for upload
var AllowedContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// UploadHandler issues upload URLs and inspects uploaded workbooks
type UploadHandler struct {
	storage StorageService
	source  *WorkbookSource
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(storage StorageService, source *WorkbookSource) *UploadHandler {
	return &UploadHandler{storage: storage, source: source}
}

// GetPresignedURL generates a presigned URL for file upload
// GET /v1/uploads/presigned-url?filename=pnl.xlsx&content_type=...
func (h *UploadHandler) GetPresignedURL(c fiber.Ctx) error {
	filename := c.Query("filename")
	contentType := c.Query("content_type")

	if filename == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "filename is required")
	}
	if contentType == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "content_type is required")
	}
	if !AllowedContentTypes[contentType] {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "unsupported file type")
	}

	_, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}
	if h.storage == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "file storage is not configured")
	}

	key, err := h.storage.GenerateUploadKey(companyID, filename)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to generate upload key")
	}

	url, err := h.storage.GeneratePresignedURL(c.Context(), key, contentType, PresignedURLExpiryMinutes*time.Minute)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to generate presigned URL")
	}

	return utils.SuccessResponse(c, fiber.Map{
		"upload_url": url,
		"file_key":   key,
		"expires_in": PresignedURLExpirySeconds,
	})
}

// AnalyzeRequest selects the workbook and locale to inspect
type AnalyzeRequest struct {
	SourceRequest
	Locale string `json:"locale"`
}

// Analyze decodes an uploaded workbook and suggests a mapping
// POST /v1/uploads/analyze
// Body: {"file_key": "uploads/{company}/...-pnl.xlsx", "sheet": "P&L"} or multipart "file"
func (h *UploadHandler) Analyze(c fiber.Ctx) error {
	var req AnalyzeRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}

	_, companyID, err := requireCompany(c)
	if err != nil {
		return fail(c, err)
	}

	wb, ref, err := h.source.Load(c, companyID, req.SourceRequest)
	if err != nil {
		return fail(c, err)
	}

	candidate, err := services.SuggestMapping(wb.Grid, req.Locale)
	if err != nil {
		return fail(c, err)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"source":    ref,
		"sheets":    wb.Sheets,
		"sheet":     wb.Sheet,
		"row_count": wb.Grid.RowCount(),
		"candidate": candidate,
		"preview":   wb.Grid[:min(previewRows, wb.Grid.RowCount())],
	})
}
