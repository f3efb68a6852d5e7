package handler

import (
	"net/http"
	"strings"
)

// HTTPError carries a status code and a stable machine-readable key. The
// optional message is operator-facing; not-found responses never say more
// than "not found" so a missing row and a foreign-owned row look identical.
type HTTPError struct {
	Code    int
	Key     string
	Message string
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

func NewHTTPError(code int, message string) HTTPError {
	return HTTPError{Code: code, Key: strings.ToLower(strings.ReplaceAll(http.StatusText(code), " ", "_")), Message: message}
}

var (
	ErrBadRequest = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrForbidden  = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound   = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrInternal   = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
)

// ValidationError maps field names to human-readable problems. It renders
// as a 400 with per-field details.
type ValidationError map[string][]string

func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e))
	for field, msgs := range e {
		parts = append(parts, field+": "+strings.Join(msgs, "; "))
	}
	return strings.Join(parts, ", ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{field: {message}}
}
