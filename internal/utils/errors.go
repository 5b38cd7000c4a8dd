package utils

import (
	"errors"
	"fmt"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/gofiber/fiber/v3"
)

type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewBadRequestError(message string, details any) *APIError {
	return &APIError{
		StatusCode: fiber.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		Details:    details,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

func NewForbiddenError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
	}
}

func NewNotFoundError(resource string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
	}
}

// NewUnprocessableError reports input that is well-formed but cannot be extracted
func NewUnprocessableError(code, message string, details any) *APIError {
	return &APIError{
		StatusCode: fiber.StatusUnprocessableEntity,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

func NewConflictError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusConflict,
		Code:       "TEMPLATE_CONFLICT",
		Message:    message,
		Retryable:  true,
	}
}

func NewInternalError(err error) *APIError {
	return &APIError{
		StatusCode: fiber.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    "An internal error occurred",
		Details:    err.Error(), // Only in development
	}
}

// FromError maps domain errors onto their HTTP representation
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var structural *models.StructuralError
	if errors.As(err, &structural) {
		return NewUnprocessableError("STRUCTURAL_ERROR", structural.Reason, nil)
	}

	var input *models.InputError
	if errors.As(err, &input) {
		return NewBadRequestError(input.Reason, nil)
	}

	var persistence *models.PersistenceError
	if errors.As(err, &persistence) {
		return &APIError{
			StatusCode: fiber.StatusInternalServerError,
			Code:       "PERSISTENCE_ERROR",
			Message:    fmt.Sprintf("failed to %s", persistence.Op),
		}
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return NewNotFoundError("resource")
	case errors.Is(err, models.ErrTemplateConflict):
		return NewConflictError("template default changed concurrently, retry the request")
	case errors.Is(err, models.ErrDuplicate):
		return &APIError{
			StatusCode: fiber.StatusConflict,
			Code:       "DUPLICATE",
			Message:    "a resource with this name already exists",
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &APIError{
			StatusCode: fiberErr.Code,
			Code:       "HTTP_ERROR",
			Message:    fiberErr.Message,
		}
	}

	return NewInternalError(err)
}

// ErrorHandler is a middleware to handle APIError
func ErrorHandler(c fiber.Ctx, err error) error {
	apiErr := FromError(err)
	return c.Status(apiErr.StatusCode).JSON(apiErr)
}
