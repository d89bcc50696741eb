// Package errors provides structured error types for featureplus.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for featureplus.
const (
	// Local rejections (raised before any optimistic mutation)
	CodeValidation Code = "VALIDATION"
	CodeCycle      Code = "CYCLE"

	// Remote outcomes
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeConflict     Code = "CONFLICT"
	CodeNetwork      Code = "NETWORK"
	CodeTimeout      Code = "TIMEOUT"

	// Session lifecycle
	CodeSessionClosed Code = "SESSION_CLOSED"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"

	CodeInternal Code = "INTERNAL"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryUnauthorized
	CategoryConflict
	CategoryInternal
	CategoryTimeout
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeValidation:    CategoryBadRequest,
	CodeCycle:         CategoryBadRequest,
	CodeNotFound:      CategoryNotFound,
	CodeUnauthorized:  CategoryUnauthorized,
	CodeConflict:      CategoryConflict,
	CodeNetwork:       CategoryUnavailable,
	CodeTimeout:       CategoryTimeout,
	CodeSessionClosed: CategoryUnavailable,
	CodeConfigInvalid: CategoryBadRequest,
	CodeInternal:      CategoryInternal,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryUnauthorized:
		return 401
	case CategoryConflict:
		return 409
	case CategoryTimeout:
		return 504
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// Error is the structured error type for featureplus.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *Error) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *Error) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrValidation returns an error for a field that failed local validation.
func ErrValidation(field, reason string) *Error {
	return &Error{
		Code: CodeValidation,
		What: fmt.Sprintf("invalid %s", field),
		Why:  reason,
		Fix:  "Correct the field and submit again",
	}
}

// ErrCycle returns an error when re-parenting would make a feature its own ancestor.
func ErrCycle(path []string) *Error {
	return &Error{
		Code: CodeCycle,
		What: "feature hierarchy would contain a cycle",
		Why:  strings.Join(path, " -> "),
		Fix:  "Choose a parent that is not a descendant of the feature",
	}
}

// ErrNotFound returns an error when an entity doesn't exist.
func ErrNotFound(key string) *Error {
	return &Error{
		Code: CodeNotFound,
		What: fmt.Sprintf("%s not found", key),
		Why:  "No entity with this ID exists in the current project",
	}
}

// ErrUnauthorized returns an error when the remote rejects the caller's credentials.
func ErrUnauthorized(reason string) *Error {
	return &Error{
		Code: CodeUnauthorized,
		What: "not authorized",
		Why:  reason,
		Fix:  "Log in again or set gateway.token in .featureplus/config.yaml",
	}
}

// ErrConflict returns an error when the remote rejects a stale update.
func ErrConflict(key, reason string) *Error {
	return &Error{
		Code: CodeConflict,
		What: fmt.Sprintf("%s was changed remotely", key),
		Why:  reason,
		Fix:  "Reload the entity and reapply your change",
	}
}

// ErrNetwork returns an error for a failed remote round-trip.
func ErrNetwork(cause error) *Error {
	return &Error{
		Code:  CodeNetwork,
		What:  "remote request failed",
		Fix:   "Check connectivity and retry; the operation is safe to repeat",
		Cause: cause,
	}
}

// ErrTimeout returns an error when the remote did not answer in time.
func ErrTimeout(cause error) *Error {
	return &Error{
		Code:  CodeTimeout,
		What:  "remote request timed out",
		Fix:   "Retry; the operation is safe to repeat",
		Cause: cause,
	}
}

// ErrSessionClosed returns an error for commands issued after teardown.
func ErrSessionClosed() *Error {
	return &Error{
		Code: CodeSessionClosed,
		What: "session is closed",
		Why:  "The entity cache was torn down",
		Fix:  "Open a new session",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *Error {
	return &Error{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .featureplus/config.yaml and fix the invalid field",
	}
}

// AsError attempts to convert an error to an *Error.
// Returns nil if no *Error is in the chain.
func AsError(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return nil
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	e := AsError(err)
	return e != nil && e.Code == code
}

// IsRetryable reports whether repeating the operation may succeed.
func IsRetryable(err error) bool {
	e := AsError(err)
	if e == nil {
		return false
	}
	switch e.Code {
	case CodeNetwork, CodeTimeout, CodeConflict:
		return true
	}
	return false
}

// Wrap wraps a generic error into an Error with the internal code.
func Wrap(err error, what string) *Error {
	return &Error{
		Code:  CodeInternal,
		What:  what,
		Cause: err,
	}
}
