package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeIncompleteSolution = "INCOMPLETE_SOLUTION"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeConflict           = "CONFLICT"
	CodeTransient          = "TRANSIENT_FAILURE"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	// Resync tells the caller its local copy is untrusted and must be re-fetched.
	Resync bool
	Err    error
}

func (e *DomainError) Error() string {
	prefix := e.Message
	if op, ok := e.Details["operation"]; ok {
		prefix = fmt.Sprintf("%v ticket %v: %s", op, e.Details["ticket_id"], e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether the error belongs to the validation class.
func (e *DomainError) IsValidation() bool {
	return e.Code == CodeValidation || e.Code == CodeIncompleteSolution
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewIncompleteSolution is the validation failure for a too-short solution text.
func NewIncompleteSolution(words, minWords int) error {
	return NewDomainError(CodeIncompleteSolution,
		fmt.Sprintf("solution must have at least %d words, got %d", minWords, words),
		http.StatusBadRequest,
		map[string]any{"words": words, "min_words": minWords})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewPermissionDenied(message string, details map[string]any) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, details)
}

func NewIllegalTransition(message string, details map[string]any) error {
	return NewDomainError(CodeIllegalTransition, message, http.StatusConflict, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewTransientFailure(err error) error {
	return &DomainError{
		Code:       CodeTransient,
		Message:    "store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Resync:     true,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// WithOperation attaches the ticket id and attempted operation to err so every
// failure reported upstream says what was being done to which ticket.
func WithOperation(err error, ticketID int64, operation string) error {
	if err == nil {
		return nil
	}
	de := ToDomainError(err)
	details := make(map[string]any, len(de.Details)+2)
	for k, v := range de.Details {
		details[k] = v
	}
	if _, ok := details["ticket_id"]; !ok && ticketID != 0 {
		details["ticket_id"] = ticketID
	}
	if _, ok := details["operation"]; !ok {
		details["operation"] = operation
	}
	copied := *de
	copied.Details = details
	return &copied
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// NeedsResync reports whether err signals that local state must be re-fetched.
func NeedsResync(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Resync
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
