package services

import (
	"errors"
	"fmt"

	apperrors "github.com/cfa-prep/study-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Practice run errors
	ErrNoAnswerSelected  = errors.New("no answer selected")
	ErrNoQuestions       = errors.New("no questions available")
	ErrRunNotFound       = errors.New("practice run not found")
	ErrInvalidTransition = errors.New("invalid practice run transition")
	ErrAnswerLocked      = errors.New("answer already submitted for this question")
	ErrRunCompleted      = errors.New("practice run already completed")

	// Content and history errors
	ErrModuleNotFound  = errors.New("module not found")
	ErrSessionNotFound = errors.New("test session not found")

	// Profile errors
	ErrProfileNotFound = errors.New("profile not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// PersistenceError reports a failed read or write against one of the
// external stores. The operation may be retried by the caller.
type PersistenceError struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

func (pe *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", pe.Op, pe.Err)
}

func (pe *PersistenceError) Unwrap() error {
	return pe.Err
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoQuestions) ||
		errors.Is(err, ErrModuleNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrProfileNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrNoAnswerSelected) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsPersistence checks if error came from a failed store operation
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAnswerLocked) ||
		errors.Is(err, ErrRunCompleted)
}

// IsForbidden checks if error represents an ownership or role violation
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
