package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
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

// Kind groups error codes by how a caller can recover from them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindState         Kind = "state_conflict"
	KindConcurrency   Kind = "concurrency"
	KindAuthorization Kind = "authorization"
	KindRateLimit     Kind = "rate_limit"
	KindInternal      Kind = "internal"
)

var prefixKinds = map[string]Kind{
	"VAL":   KindValidation,
	"NF":    KindNotFound,
	"STATE": KindState,
	"CONC":  KindConcurrency,
	"AUTH":  KindAuthorization,
	"RATE":  KindRateLimit,
	"SYS":   KindInternal,
}

// Category returns the kind of err. Errors that are not AppErrors are internal.
func Category(err error) Kind {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return KindInternal
	}
	prefix, _, _ := strings.Cut(appErr.Code, "_")
	if k, ok := prefixKinds[prefix]; ok {
		return k
	}
	return KindInternal
}

// Retryable reports whether the same request may succeed if sent again unchanged.
func Retryable(err error) bool {
	switch Category(err) {
	case KindConcurrency, KindRateLimit:
		return true
	}
	return false
}

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("VAL_002", "Source and destination accounts must differ", http.StatusBadRequest)
}

func ErrInvalidAccountNumber() *AppError {
	return New("VAL_003", "Account number must be 9 uppercase letters or digits", http.StatusBadRequest)
}

func ErrInvalidCustomerID() *AppError {
	return New("VAL_004", "Customer id must be 10 digits", http.StatusBadRequest)
}

func ErrInvalidBranchCode() *AppError {
	return New("VAL_005", "Branch code must be up to 10 uppercase letters or digits", http.StatusBadRequest)
}

func ErrBodyTooLarge() *AppError {
	return New("VAL_006", "Request body too large", http.StatusRequestEntityTooLarge)
}

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("VAL_000", message, http.StatusBadRequest)
}

// ---- Not found (NF) ----

func ErrAccountNotFound() *AppError {
	return New("NF_001", "Account not found", http.StatusNotFound)
}

func ErrBranchNotFound() *AppError {
	return New("NF_002", "Branch not found", http.StatusNotFound)
}

func ErrNotFound(entity string) *AppError {
	return New("NF_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- State conflict (STATE) ----

func ErrAccountClosed() *AppError {
	return New("STATE_001", "Account is closed", http.StatusConflict)
}

func ErrInsufficientBalance() *AppError {
	return New("STATE_002", "Insufficient balance", http.StatusUnprocessableEntity)
}

func ErrNonZeroBalance() *AppError {
	return New("STATE_003", "Account balance must be zero", http.StatusConflict)
}

func ErrNotClosed() *AppError {
	return New("STATE_004", "Account is not closed", http.StatusConflict)
}

func ErrDuplicateAccount() *AppError {
	return New("STATE_005", "Account number already exists", http.StatusConflict)
}

func ErrCrossStoreTransfer() *AppError {
	return New("STATE_006", "Cross-store transfer not supported", http.StatusUnprocessableEntity)
}

// ---- Concurrency (CONC) ----

func ErrConcurrentModification() *AppError {
	return New("CONC_001", "Account state changed concurrently, retry", http.StatusConflict)
}

func ErrRequestInFlight() *AppError {
	return New("CONC_002", "A request with this idempotency key is still being processed", http.StatusConflict)
}

// ---- Authentication & authorization (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

// Forbidden carries the gate's reason for the denial.
func Forbidden(reason string) *AppError {
	return New("AUTH_003", reason, http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrCacheError(err error) *AppError {
	return Wrap("SYS_003", "Cache service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_000 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
