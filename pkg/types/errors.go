package types

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an expected failure category surfaced to callers.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeStoreFailure      ErrorCode = "STORE_FAILURE"
)

// LedgerError is the structured error returned by every core operation.
// It serializes to the `{status:"error", code, message}` shape expected
// by REST clients of the original system.
type LedgerError struct {
	Status  string    `json:"status"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{
		Status:  "error",
		Code:    CodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewAlreadyExistsError creates a new duplicate-registration error
func NewAlreadyExistsError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{
		Status:  "error",
		Code:    CodeAlreadyExists,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInvalidCredentialError creates a new login-mismatch error
func NewInvalidCredentialError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{
		Status:  "error",
		Code:    CodeInvalidCredential,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInvalidTransitionError creates a new consent state-machine error
func NewInvalidTransitionError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{
		Status:  "error",
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewStoreFailureError wraps an underlying ledger I/O failure
func NewStoreFailureError(message string, cause error) *LedgerError {
	return &LedgerError{
		Status:  "error",
		Code:    CodeStoreFailure,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err is a LedgerError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
