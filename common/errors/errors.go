package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error so transport layers can map it to an HTTP
// status without string matching.
type Kind int

const (
	// KindInternal is the default for unclassified failures.
	KindInternal Kind = iota
	// KindValidation marks bad input: unknown enum values, missing fields,
	// unparseable dates.
	KindValidation
	// KindNotFound marks a missing group, contract or product.
	KindNotFound
	// KindConflict marks non-retryable business-rule violations: duplicate
	// group membership, mutation of a closed group.
	KindConflict
	// KindDataUnavailable marks an unreachable collaborator or missing market
	// data. Calculations never degrade to a zero result instead of this.
	KindDataUnavailable
)

// Error is the domain error type used across the risk engine and trade group
// services.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// Is lets errors.Is match two domain errors with the same kind, so callers
// can compare against the sentinel constructors below.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return de.kind == e.kind
	}
	return false
}

// NewValidation creates a validation error.
func NewValidation(format string, args ...interface{}) *Error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// NewNotFound creates a not-found error.
func NewNotFound(format string, args ...interface{}) *Error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// NewConflict creates a conflict error.
func NewConflict(format string, args ...interface{}) *Error {
	return &Error{kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

// NewDataUnavailable creates a data-unavailable error, optionally wrapping the
// underlying cause.
func NewDataUnavailable(cause error, format string, args ...interface{}) *Error {
	return &Error{kind: KindDataUnavailable, msg: fmt.Sprintf(format, args...), err: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation      = &Error{kind: KindValidation, msg: "validation failed"}
	ErrNotFound        = &Error{kind: KindNotFound, msg: "not found"}
	ErrConflict        = &Error{kind: KindConflict, msg: "conflict"}
	ErrDataUnavailable = &Error{kind: KindDataUnavailable, msg: "data unavailable"}
)

// KindOf extracts the kind from any error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the HTTP status the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDataUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
