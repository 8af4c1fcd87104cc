// Package fault defines the error taxonomy shared by the store, the approval
// engine and the HTTP surface. Every error returned across a package
// boundary either is a *Error or wraps one, so callers classify failures
// with KindOf instead of string matching.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	// Internal is any unclassified failure.
	Internal Kind = iota
	// Validation means the caller supplied missing or malformed input.
	Validation
	// NotFound means the addressed entity does not exist.
	NotFound
	// Conflict means the operation is not allowed in the entity's current state.
	Conflict
	// Forbidden means the caller is authenticated but lacks authority.
	Forbidden
	// Unauthenticated means the caller identity is missing or invalid.
	Unauthenticated
	// Unavailable means a storage or audit write failed.
	Unavailable
)

var kindNames = map[Kind]string{
	Internal:        "internal",
	Validation:      "validation",
	NotFound:        "not_found",
	Conflict:        "conflict",
	Forbidden:       "forbidden",
	Unauthenticated: "unauthenticated",
	Unavailable:     "unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	// Fields lists offending input fields for Validation errors.
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, fault.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation      = &Error{Kind: Validation}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrConflict        = &Error{Kind: Conflict}
	ErrForbidden       = &Error{Kind: Forbidden}
	ErrUnauthenticated = &Error{Kind: Unauthenticated}
	ErrUnavailable     = &Error{Kind: Unavailable}
)

// NewValidationError reports the missing or malformed fields.
func NewValidationError(message string, fields ...string) error {
	return &Error{Kind: Validation, Message: message, Fields: fields}
}

// NewMissingFieldsError reports required fields that were left empty.
func NewMissingFieldsError(fields ...string) error {
	return NewValidationError("missing required fields", fields...)
}

// NewNotFoundError reports an unknown entity.
func NewNotFoundError(entity, id string) error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError reports an operation rejected by the entity's state.
func NewConflictError(format string, args ...interface{}) error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

// NewForbiddenError reports an authenticated caller without authority.
func NewForbiddenError(format string, args ...interface{}) error {
	return &Error{Kind: Forbidden, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthenticatedError reports a missing or invalid caller identity.
func NewUnauthenticatedError(format string, args ...interface{}) error {
	return &Error{Kind: Unauthenticated, Message: fmt.Sprintf(format, args...)}
}

// NewUnavailableError wraps a storage failure.
func NewUnavailableError(operation string, err error) error {
	return &Error{Kind: Unavailable, Message: operation + " failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// FieldsOf returns validation fields carried by err, if any.
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Wrap classifies err as Unavailable unless it already carries a kind.
func Wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewUnavailableError(operation, err)
}
