// Package errors defines the application error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an application error.
type ErrorCode string

const (
	// Generic codes.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeForbidden     ErrorCode = "FORBIDDEN"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"
	CodeTransient     ErrorCode = "TRANSIENT"
	CodeInternal      ErrorCode = "INTERNAL"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"
	CodeConfigMissing ErrorCode = "CONFIG_MISSING"

	// Domain codes.
	CodeBookNotFound    ErrorCode = "BOOK_NOT_FOUND"
	CodePageNotFound    ErrorCode = "PAGE_NOT_FOUND"
	CodeBlockNotFound   ErrorCode = "BLOCK_NOT_FOUND"
	CodeSessionInvalid  ErrorCode = "SESSION_INVALID"
	CodeSessionExpired  ErrorCode = "SESSION_EXPIRED"
	CodeBadImage        ErrorCode = "BAD_IMAGE"
	CodeOCRFailed       ErrorCode = "OCR_FAILED"
	CodeSynthesisFailed ErrorCode = "SYNTHESIS_FAILED"
)

// AppError is the error type surfaced across layer boundaries.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
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

// WithDetail attaches caller-facing detail text.
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError attaches an underlying cause.
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New creates an AppError with the HTTP status derived from the code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap wraps err in an AppError.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeValidation, CodeBadImage, CodeConfigMissing:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeBookNotFound, CodePageNotFound, CodeBlockNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeSessionInvalid, CodeSessionExpired:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors.
var (
	ErrValidation    = New(CodeValidation, "invalid input")
	ErrUnauthorized  = New(CodeUnauthorized, "unauthorized")
	ErrForbidden     = New(CodeForbidden, "forbidden")
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrConflict      = New(CodeConflict, "resource conflict")
	ErrInternal      = New(CodeInternal, "internal server error")
	ErrRateLimited   = New(CodeRateLimited, "too many requests")
	ErrConfigMissing = New(CodeConfigMissing, "provider credentials not configured")

	ErrBookNotFound   = New(CodeBookNotFound, "book not found")
	ErrPageNotFound   = New(CodePageNotFound, "page not found")
	ErrBlockNotFound  = New(CodeBlockNotFound, "text block not found")
	ErrSessionInvalid = New(CodeSessionInvalid, "session invalid or not active")
	ErrSessionExpired = New(CodeSessionExpired, "session expired")
	ErrBadImage       = New(CodeBadImage, "invalid image upload")
)

// AsAppError converts any error to an AppError, wrapping unknowns as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "internal server error")
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsTransient reports whether err should be retried by the pipeline.
func IsTransient(err error) bool {
	return IsCode(err, CodeTransient) || IsCode(err, CodeRateLimited)
}

// IsNotFound reports whether err is any of the not-found codes.
func IsNotFound(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound, CodeBookNotFound, CodePageNotFound, CodeBlockNotFound:
			return true
		}
	}
	return false
}

// Transient wraps err as a retryable failure.
func Transient(err error, message string) *AppError {
	return Wrap(err, CodeTransient, message)
}
