package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies application errors for HTTP mapping and retry decisions.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindAuth              ErrorKind = "auth"
	KindQuota             ErrorKind = "quota"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindTransientUpstream ErrorKind = "transient_upstream"
	KindPermanentUpstream ErrorKind = "permanent_upstream"
	KindIntegrity         ErrorKind = "integrity"
)

// Error codes surfaced in API responses and consumed by coordinators.
const (
	CodeDomainTaken        = "DOMAIN_TAKEN"
	CodeUsageLimitExceeded = "USAGE_LIMIT_EXCEEDED"
	CodeDailyLimitExceeded = "DAILY_LIMIT_EXCEEDED"
	CodeDomainMismatch     = "DOMAIN_MISMATCH"
	CodeNotWhitelisted     = "NOT_WHITELISTED"
	CodeCannotCancel       = "CANNOT_CANCEL"
	CodeMissingPublisher   = "MISSING_PUBLISHER"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeInvalidAdminKey    = "INVALID_ADMIN_KEY"
)

// AppError is the single error type crossing component boundaries.
// Stores return it unchanged; only the pipeline executor reclassifies
// upstream failures into transient/permanent kinds.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError creates an AppError without a wrapped cause.
func NewError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// WrapError creates an AppError wrapping an underlying cause.
func WrapError(kind ErrorKind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf extracts the error kind, defaulting to integrity for unknown errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindIntegrity
}

// CodeOf extracts the error code, empty for unclassified errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsTransient reports whether the error is a retryable upstream failure.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientUpstream
}

// HTTPStatus maps an error to its HTTP status code.
// Internal upstream classifications are never surfaced directly; if one
// leaks to the API layer it maps to 502.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		if appErr.Code == CodeInvalidAPIKey || appErr.Code == CodeInvalidAdminKey {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case KindQuota:
		if appErr.Code == CodeDailyLimitExceeded {
			return http.StatusTooManyRequests
		}
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		if appErr.Code == CodeCannotCancel {
			return http.StatusBadRequest
		}
		return http.StatusConflict
	case KindTransientUpstream, KindPermanentUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
