// Package errors provides the closed set of domain errors used by the Shelfmate API.
//
// Usage:
//
//	// In services - return typed errors
//	if survey.FirstTime {
//	    return nil, errors.OnboardingIncomplete("complete the reading survey first")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrUpstreamUnavailable) {
//	    // retry later
//	}
//
//	// Or switch on the Code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeQuotaExceeded:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Is and As are re-exported so callers need only one errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeValidation             Code = "VALIDATION"
	CodeConflict               Code = "CONFLICT"
	CodeInternal               Code = "INTERNAL"
	CodeQuotaExceeded          Code = "QUOTA_EXCEEDED"
	CodeOnboardingIncomplete   Code = "ONBOARDING_INCOMPLETE"
	CodeUpstreamUnavailable    Code = "UPSTREAM_UNAVAILABLE"
	CodeMalformedOutput        Code = "MALFORMED_OUTPUT"
	CodeNoValidRecommendations Code = "NO_VALID_RECOMMENDATIONS"
	CodeStorage                Code = "STORAGE"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation:
		return http.StatusBadRequest
	case CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeOnboardingIncomplete:
		return http.StatusPreconditionFailed
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeMalformedOutput, CodeNoValidRecommendations:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized           = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation             = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict               = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal               = &Error{Code: CodeInternal, Message: "internal error"}
	ErrQuotaExceeded          = &Error{Code: CodeQuotaExceeded, Message: "daily recommendation quota exceeded"}
	ErrOnboardingIncomplete   = &Error{Code: CodeOnboardingIncomplete, Message: "onboarding survey not completed"}
	ErrUpstreamUnavailable    = &Error{Code: CodeUpstreamUnavailable, Message: "upstream service unavailable"}
	ErrMalformedOutput        = &Error{Code: CodeMalformedOutput, Message: "malformed model output"}
	ErrNoValidRecommendations = &Error{Code: CodeNoValidRecommendations, Message: "no valid recommendations in model output"}
	ErrStorage                = &Error{Code: CodeStorage, Message: "storage error"}
)

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// QuotaExceeded creates a quota exceeded error carrying the admission outcome.
func QuotaExceeded(remaining int, resetIn string) *Error {
	return &Error{
		Code:    CodeQuotaExceeded,
		Message: "daily recommendation quota exceeded",
		Details: map[string]any{
			"remaining": remaining,
			"reset_in":  resetIn,
		},
	}
}

// OnboardingIncomplete creates an onboarding incomplete error.
func OnboardingIncomplete(msg string) *Error {
	return &Error{Code: CodeOnboardingIncomplete, Message: msg}
}

// UpstreamUnavailable wraps a transport or model failure.
func UpstreamUnavailable(err error, msg string) *Error {
	return &Error{Code: CodeUpstreamUnavailable, Message: msg, cause: err}
}

// MalformedOutput creates a malformed output error.
func MalformedOutput(msg string) *Error {
	return &Error{Code: CodeMalformedOutput, Message: msg}
}

// NoValidRecommendations creates a no valid recommendations error.
func NoValidRecommendations(msg string) *Error {
	return &Error{Code: CodeNoValidRecommendations, Message: msg}
}

// Storage wraps a local store failure.
func Storage(err error, msg string) *Error {
	return &Error{Code: CodeStorage, Message: msg, cause: err}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}
