// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
)

type problemMapping struct {
	sentinel error
	status   int
	title    string
	detail   string
}

// Order matters: the first matching sentinel wins.
var mappings = []problemMapping{
	{shared.ErrNotAuthenticated, http.StatusUnauthorized, "Unauthorized", "No token provided"},
	{shared.ErrInvalidToken, http.StatusUnauthorized, "Unauthorized", "Invalid token"},
	{shared.ErrAccountInactive, http.StatusUnauthorized, "Unauthorized", "User not found or inactive"},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized", "Invalid credentials"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden", "Insufficient permissions"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found", "Not found"},
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed", "Validation failed"},
	{roles.ErrUnknownRole, http.StatusBadRequest, "Validation Failed", "Unknown role"},
	{shared.ErrConflict, http.StatusConflict, "Conflict", "Conflict"},
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authentication failures always carry their fixed detail so callers cannot
// tell an inactive account from a missing one.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range mappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		detail := m.detail
		if m.status != http.StatusUnauthorized {
			if extra := wrappedDetail(err, m.sentinel); extra != "" {
				detail = extra
			}
		}
		Problem(w, m.status, m.title, detail)
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// wrappedDetail returns the text a service added around the sentinel with
// fmt.Errorf("%w: ...").
func wrappedDetail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if idx := strings.Index(msg, prefix); idx >= 0 {
		return msg[idx+len(prefix):]
	}
	return ""
}

// StatusOf returns the status RespondError would write for err.
func StatusOf(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
