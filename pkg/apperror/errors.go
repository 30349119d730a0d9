package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"retryable"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// CodeOf returns the error code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether the caller may re-fetch and resubmit.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Retryable
}

// ---- Operation lifecycle (OPS) ----

const (
	CodeInvalidAmount          = "OPS_001"
	CodeMissingAccount         = "OPS_002"
	CodeSameAccount            = "OPS_003"
	CodeInsufficientFunds      = "OPS_004"
	CodeAccountNotFound        = "OPS_005"
	CodeDestinationRequired    = "OPS_006"
	CodeInvalidStateTransition = "OPS_007"
	CodeConcurrencyConflict    = "OPS_008"
	CodeOperationNotFound      = "OPS_009"
	CodeInvalidKind            = "OPS_010"
	CodeAccountExists          = "OPS_011"
)

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrMissingAccount(role string) *AppError {
	return New(CodeMissingAccount, fmt.Sprintf("%s account is required", role), http.StatusBadRequest)
}

func ErrSameAccount() *AppError {
	return New(CodeSameAccount, "Cannot transfer to the same account", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusUnprocessableEntity)
}

func ErrAccountNotFound() *AppError {
	return New(CodeAccountNotFound, "Account not found", http.StatusNotFound)
}

func ErrDestinationRequired() *AppError {
	return New(CodeDestinationRequired, "Destination account required for transfers", http.StatusBadRequest)
}

func ErrInvalidStateTransition(message string) *AppError {
	return New(CodeInvalidStateTransition, message, http.StatusConflict)
}

// ErrConcurrencyConflict is the only retryable business error.
func ErrConcurrencyConflict(err error) *AppError {
	e := Wrap(CodeConcurrencyConflict, "Concurrent modification detected, reload and retry", http.StatusConflict, err)
	e.Retryable = true
	return e
}

func ErrOperationNotFound() *AppError {
	return New(CodeOperationNotFound, "Operation not found", http.StatusNotFound)
}

func ErrInvalidKind(kind string) *AppError {
	return New(CodeInvalidKind, fmt.Sprintf("Unknown operation type %q", kind), http.StatusBadRequest)
}

func ErrAccountExists() *AppError {
	return New(CodeAccountExists, "Owner already has an account", http.StatusConflict)
}

// ---- Documents (DOC) ----

func ErrDocumentTooLarge(limit int64) *AppError {
	return New("DOC_001", fmt.Sprintf("File size exceeds %d bytes limit", limit), http.StatusRequestEntityTooLarge)
}

func ErrDocumentType() *AppError {
	return New("DOC_002", "Invalid file type. Only PDF, JPG, and PNG are allowed", http.StatusUnsupportedMediaType)
}

func ErrDocumentExists() *AppError {
	return New("DOC_003", "A document is already attached to this operation", http.StatusConflict)
}

func ErrDocumentNotFound() *AppError {
	return New("DOC_004", "Document not found", http.StatusNotFound)
}

func ErrEmptyDocument() *AppError {
	return New("DOC_005", "Cannot store empty file", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Insufficient role for this resource", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}

// ErrPayloadTooLarge is returned when a request body exceeds the server limit.
func ErrPayloadTooLarge() *AppError {
	return New("REQ_002", "Request body too large", http.StatusRequestEntityTooLarge)
}
