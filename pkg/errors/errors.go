package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
	ErrAccountLocked  = errors.New("account locked")

	// Payment error classes. ErrPaymentPending is not a failure: it means
	// verification has not yet observed a completed charge and the caller
	// may retry.
	ErrPaymentFailed  = errors.New("payment failed")
	ErrPaymentPending = errors.New("payment pending")

	// ErrEnrollmentOrphaned marks the critical case where the gateway took
	// the money but account registration did not complete. Callers must
	// surface it distinctly and must never retry it automatically.
	ErrEnrollmentOrphaned = errors.New("payment completed but registration failed")
)

// AppError is a structured application error with an HTTP status mapping
// and a machine-readable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error without a resource/field context.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Gone creates a 410 error for resources that existed but are no longer valid.
func Gone(message string) *AppError {
	return &AppError{
		Code:    "GONE",
		Message: message,
		Status:  http.StatusGone,
		Err:     ErrInvalidInput,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// AccountLocked creates a 423 error for accounts locked after repeated
// failed login attempts.
func AccountLocked(message string) *AppError {
	return &AppError{
		Code:    "ACCOUNT_LOCKED",
		Message: message,
		Status:  http.StatusLocked,
		Err:     ErrAccountLocked,
	}
}

// TwoFactorRequired creates a 400 error flagging that a 2FA token or backup
// code must accompany the login request.
func TwoFactorRequired(message string) *AppError {
	return &AppError{
		Code:    "TWO_FACTOR_REQUIRED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrUnauthorized,
	}
}

// EmailVerificationRequired creates a 400 error for accounts that have not
// confirmed their email address yet.
func EmailVerificationRequired(message string) *AppError {
	return &AppError{
		Code:    "EMAIL_VERIFICATION_REQUIRED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrUnauthorized,
	}
}

// PaymentFailed creates a 422 error for a charge that the gateway declined
// or reported as failed.
func PaymentFailed(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_FAILED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrPaymentFailed,
	}
}

// PaymentPending creates a 202-mapped error for a charge the gateway has not
// confirmed yet. It is retryable and must not be rendered as a hard failure.
func PaymentPending(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_PENDING",
		Message: message,
		Status:  http.StatusAccepted,
		Err:     ErrPaymentPending,
	}
}

// EnrollmentOrphaned creates the critical error for a verified payment whose
// follow-up registration failed. The user has paid but has no account; the
// response directs them to support rather than to a retry.
func EnrollmentOrphaned(reference string) *AppError {
	return &AppError{
		Code:    "POST_PAYMENT_REGISTRATION_FAILED",
		Message: fmt.Sprintf("your payment %s was received but account setup failed; please contact support, do not pay again", reference),
		Status:  http.StatusConflict,
		Err:     ErrEnrollmentOrphaned,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPaymentPending):
		return http.StatusAccepted
	case errors.Is(err, ErrEnrollmentOrphaned):
		return http.StatusConflict
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
