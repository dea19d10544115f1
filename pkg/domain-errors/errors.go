// Package domainerrors defines the error taxonomy shared by services and the
// HTTP layer. Services wrap infrastructure errors with a code; handlers map
// codes to status lines without inspecting the underlying error.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and caller handling.
type Code string

const (
	// CodeValidation covers malformed or rejected input: missing fields,
	// stale dates, ungeocodable addresses, moderated content. The message is
	// user-presentable and no retry is implied.
	CodeValidation Code = "validation"

	// CodeBadRequest covers requests that could not be parsed at all.
	CodeBadRequest Code = "bad_request"

	// CodeQuotaExceeded signals the per-source daily limit was hit. Distinct
	// from validation so callers can surface "try again tomorrow".
	CodeQuotaExceeded Code = "quota_exceeded"

	// CodeNotFound signals the target record is absent: never created,
	// already processed, or genuinely missing.
	CodeNotFound Code = "not_found"

	// CodeUnauthorized signals missing or invalid caller credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden signals valid credentials without the required role.
	CodeForbidden Code = "forbidden"

	// CodeInternal collapses store and external-service failures. Full detail
	// stays in server logs; callers only see a generic error.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-safe message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a domain error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// Message returns the caller-safe message, or a generic one for non-domain
// errors so infrastructure detail never leaks to clients.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
