// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicate      = errors.New("duplicate entry")
	ErrValidation     = errors.New("validation failed")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSessionExpired = errors.New("session expired")
)

// FieldError is implemented by errors that can point at a single offending input field.
type FieldError interface {
	error
	FieldName() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	field := ""
	var fe FieldError
	if errors.As(err, &fe) {
		field = fe.FieldName()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		FieldProblem(w, http.StatusConflict, "Duplicate", err.Error(), field)
	case errors.Is(err, ErrValidation):
		FieldProblem(w, http.StatusBadRequest, "Validation Failed", err.Error(), field)
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrSessionExpired):
		Problem(w, http.StatusForbidden, "Session Expired", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrDuplicate, ErrValidation, ErrForbidden, ErrSessionExpired, ErrUnauthorized} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
