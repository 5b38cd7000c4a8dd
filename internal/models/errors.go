package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when an entity does not exist in the caller's scope
	ErrNotFound = errors.New("not found")

	// ErrTemplateConflict is returned when a default-template write could not be
	// applied atomically. Callers may retry.
	ErrTemplateConflict = errors.New("template default conflict")

	// ErrDuplicate is returned when a name or clone already exists in the scope
	ErrDuplicate = errors.New("already exists")
)

// InputError is a request the caller must correct before retrying
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// NewInputError builds an InputError from a format string
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// StructuralError means the mapping violates grid bounds or column-set
// invariants. Extraction halts on it.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Reason
}

// NewStructuralError builds a StructuralError from a format string
func NewStructuralError(format string, args ...any) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a rejected write. It is terminal: financial writes are
// never retried automatically.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err is (or wraps) a StructuralError
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
