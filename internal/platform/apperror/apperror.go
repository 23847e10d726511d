// Package apperror defines the error taxonomy shared by the fund's domain
// services. Every failed guard in the engine returns an *Error with a stable
// machine-readable code; HTTP handlers map the kind to a status without
// inspecting message text.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation policy purposes.
type Kind int

const (
	// Validation errors are caller-fixable; no partial state is written.
	Validation Kind = iota
	// Authorization errors block the action entirely.
	Authorization
	// State errors indicate an invalid lifecycle transition or a lost race.
	State
	// Conflict errors indicate a concurrent-modification conflict the caller
	// should retry.
	Conflict
	// NotFound errors indicate a missing entity.
	NotFound
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// KindOf extracts the Kind from err, unwrapping as needed.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// CodeOf extracts the stable code from err, or "" if err is not an *Error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// HTTPStatus maps an error to the HTTP status a handler should return.
func HTTPStatus(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case Validation:
		return http.StatusUnprocessableEntity
	case Authorization:
		return http.StatusForbidden
	case State:
		return http.StatusConflict
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
