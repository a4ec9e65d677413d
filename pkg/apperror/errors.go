package apperror

import (
	"fmt"
	"net/http"
	"strings"
)

// FieldError names a single violated input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string       `json:"error_code"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
	HTTPStatus int          `json:"-"`
	Err        error        `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HasField reports whether the error lists a violation for the named field.
func (e *AppError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

const CodeValidation = "VAL_001"

// Validation returns a single-message validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ValidationFields returns a validation error listing every violated field.
func ValidationFields(fields ...FieldError) *AppError {
	e := New(CodeValidation, "Validation failed", http.StatusBadRequest)
	e.Fields = fields
	return e
}

// ---- Escrow lifecycle (ESC) ----

func ErrNotAParty() *AppError {
	return New("ESC_001", "Caller is not a party to this escrow", http.StatusForbidden)
}

func ErrNotAuthorized() *AppError {
	return New("ESC_002", "Caller is not allowed to view this escrow", http.StatusForbidden)
}

func ErrAlreadyLinked() *AppError {
	return New("ESC_003", "Escrow recipient is already linked to another account", http.StatusConflict)
}

func ErrAlreadySet() *AppError {
	return New("ESC_004", "Settlement address is already set and cannot be changed", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("ESC_005", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrSettlementAddressRequired() *AppError {
	return New("ESC_006", "Add your settlement address before confirming", http.StatusConflict)
}

func ErrEscrowCompleted() *AppError {
	return New("ESC_007", "Escrow is already completed", http.StatusConflict)
}

func ErrEscrowDisputed() *AppError {
	return New("ESC_008", "Escrow is disputed and frozen", http.StatusConflict)
}

// ---- External collaborators (COL) ----

func ErrCollaboratorUnavailable(name string, err error) *AppError {
	return Wrap("COL_001", fmt.Sprintf("%s is unavailable", name), http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidPasscode() *AppError {
	return New("AUTH_001", "Invalid or expired passcode", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrPasscodeAttemptsExceeded() *AppError {
	return New("AUTH_003", "Too many passcode attempts, request a new code", http.StatusTooManyRequests)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
