// Package domainerrors defines the coded errors services return to callers.
//
// Stores return infrastructure sentinels (pkg/platform/sentinel); services
// translate them into one of the codes below so transports can map them to a
// response without inspecting messages. Every rejection carries the specific
// reason in Message and, where useful, machine-readable Details (current
// state, failing checks, shortfall).
package domainerrors

import (
	"errors"
	"maps"
)

type Code string

const (
	CodeNotFound              Code = "not_found"
	CodeInvalidState          Code = "invalid_state"
	CodeInvalidArgument       Code = "invalid_argument"
	CodeInsufficientInventory Code = "insufficient_inventory"
	CodeConflict              Code = "conflict"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeTimeout               Code = "timeout"
	CodeInternal              Code = "internal_error"
)

// Error is a domain error with a stable code.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a machine-readable detail and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in err's chain is a domain error with code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the outermost domain error code, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf returns a copy of the details attached to the outermost domain error.
func DetailsOf(err error) map[string]any {
	var de *Error
	if errors.As(err, &de) && len(de.Details) > 0 {
		return maps.Clone(de.Details)
	}
	return nil
}

// MessageOf returns the outermost domain error message, or a generic message
// for errors that never passed through a service.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
