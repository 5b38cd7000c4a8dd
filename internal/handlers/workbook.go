package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/middleware"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// StorageService interface defines methods for S3 operations
type StorageService interface {
	GenerateUploadKey(companyID uuid.UUID, filename string) (string, error)
	GeneratePresignedURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// WorkbookSource validates and decodes uploads, either from storage by key
// or from a multipart "file" field
type WorkbookSource struct {
	storage   StorageService
	validator *services.FileValidator
}

// NewWorkbookSource creates a new workbook source instance
func NewWorkbookSource(storage StorageService, validator *services.FileValidator) *WorkbookSource {
	return &WorkbookSource{storage: storage, validator: validator}
}

// SourceRequest names the workbook to read
type SourceRequest struct {
	FileKey string `json:"file_key" form:"file_key"`
	Sheet   string `json:"sheet" form:"sheet"`
}

// Load returns the decoded workbook and the reference it was read from
func (s *WorkbookSource) Load(c fiber.Ctx, companyID uuid.UUID, req SourceRequest) (*services.Workbook, string, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, "", models.NewInputError("failed to open uploaded file")
		}
		defer f.Close()
		wb, err := s.decode(c.Context(), f, fh.Filename, fh.Header.Get("Content-Type"), req.Sheet)
		return wb, "upload:" + filepath.Base(fh.Filename), err
	}

	if req.FileKey == "" {
		return nil, "", models.NewInputError("file_key or a multipart file is required")
	}
	if !services.OwnsKey(companyID, req.FileKey) {
		return nil, "", utils.NewForbiddenError("forbidden - cannot access this file")
	}
	if s.storage == nil {
		return nil, "", models.NewInputError("file storage is not configured; upload the file directly")
	}

	body, contentType, err := s.storage.DownloadFile(c.Context(), req.FileKey)
	if err != nil {
		logger.FromContext(c.Context()).Warn().Err(err).Str("file_key", req.FileKey).Msg("download failed")
		return nil, "", utils.NewNotFoundError("file")
	}
	defer body.Close()

	wb, err := s.decode(c.Context(), body, req.FileKey, contentType, req.Sheet)
	return wb, req.FileKey, err
}

func (s *WorkbookSource) decode(ctx context.Context, r io.Reader, filename, contentType, sheet string) (*services.Workbook, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(filename)
	}

	upload, err := s.validator.Accept(r, filepath.Base(filename), contentType)
	if err != nil {
		var rejected *services.RejectedUploadError
		if errors.As(err, &rejected) {
			return nil, utils.NewBadRequestError("file validation failed", rejected.Problems)
		}
		return nil, err
	}

	wb, err := services.ReadWorkbook(bytes.NewReader(upload.Data), filename, sheet)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug().
		Str("type", upload.Kind).
		Int64("size", upload.Size()).
		Str("sheet", wb.Sheet).
		Int("rows", wb.Grid.RowCount()).
		Msg("workbook decoded")
	return wb, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return ""
}

// requireCompany returns the company scope of the request
func requireCompany(c fiber.Ctx) (models.Scope, uuid.UUID, error) {
	scope, err := requireScope(c)
	if err != nil {
		return scope, uuid.Nil, err
	}
	if !scope.IsCompany() {
		return scope, uuid.Nil, utils.NewBadRequestError(middleware.CompanyHeader+" header is required", nil)
	}
	return scope, *scope.CompanyID, nil
}

// requireScope returns the tenant scope of the request
func requireScope(c fiber.Ctx) (models.Scope, error) {
	scope, ok := middleware.ScopeFrom(c)
	if !ok {
		return scope, utils.NewUnauthorizedError("unauthorized - scope not found")
	}
	return scope, nil
}

// fail renders err the way the app error handler does
func fail(c fiber.Ctx, err error) error {
	return utils.ErrorHandler(c, err)
}

func parseID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, utils.NewBadRequestError("invalid "+name, nil)
	}
	return id, nil
}

// RequestField carries the JSON request next to a multipart file
const RequestField = "request"

// bindBody decodes a JSON body, or the JSON in the "request" field of a
// multipart form. An empty body leaves out untouched.
func bindBody(c fiber.Ctx, out any) error {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		raw := c.FormValue(RequestField)
		if raw == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return utils.NewBadRequestError("invalid request field", err.Error())
		}
		return nil
	}
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind().JSON(out); err != nil {
		return utils.NewBadRequestError("invalid request body", nil)
	}
	return nil
}
