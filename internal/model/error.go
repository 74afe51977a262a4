package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMismatch           = "MISMATCH"
	ErrCodeConflict           = "CONFLICT"
	ErrCodePersistenceFailure = "PERSISTENCE_FAILURE"
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// DomainError is the error type returned by the pricing, submission and search paths.
// Field names the offending input for validation failures.
type DomainError struct {
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, model.ErrConflict) matches any conflict.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports malformed input on the named field.
func NewValidationError(field, message string) *DomainError {
	return &DomainError{Code: ErrCodeValidation, Message: message, Field: field}
}

// NewNotFoundError reports a missing catalog or quote reference.
func NewNotFoundError(message string) *DomainError {
	return &DomainError{Code: ErrCodeNotFound, Message: message}
}

// NewMismatchError reports a reference that does not belong to its stated parent.
func NewMismatchError(field, message string) *DomainError {
	return &DomainError{Code: ErrCodeMismatch, Message: message, Field: field}
}

// NewConflictError reports that the same idempotency key is being worked on elsewhere.
func NewConflictError(message string) *DomainError {
	return &DomainError{Code: ErrCodeConflict, Message: message}
}

// NewPersistenceError wraps a storage collaborator failure.
func NewPersistenceError(message string, err error) *DomainError {
	return &DomainError{Code: ErrCodePersistenceFailure, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons; they match on Code only.
var (
	ErrValidation         = NewDomainError(ErrCodeValidation, "validation failed")
	ErrNotFound           = NewDomainError(ErrCodeNotFound, "resource not found")
	ErrMismatch           = NewDomainError(ErrCodeMismatch, "reference does not belong to parent")
	ErrConflict           = NewDomainError(ErrCodeConflict, "submission in progress, retry with the same key")
	ErrPersistenceFailure = NewDomainError(ErrCodePersistenceFailure, "storage failure")
)
