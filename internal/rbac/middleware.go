package rbac

import (
	"log/slog"
	"net/http"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
)

// Middleware wires role-policy authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current principal holds at least one of the actions.
func (m Middleware) RequireAny(actions ...roles.Action) func(http.Handler) http.Handler {
	return m.require(actions, hasAny)
}

// RequireAll ensures the current principal holds every listed action.
func (m Middleware) RequireAll(actions ...roles.Action) func(http.Handler) http.Handler {
	return m.require(actions, hasAll)
}

func (m Middleware) require(actions []roles.Action, match func(roles.ActionSet, []roles.Action) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(actions) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrNotAuthenticated)
				return
			}
			if match(m.service().EffectivePermissions(principal.Role), actions) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac denied",
					slog.String("user_id", principal.UserID),
					slog.String("role", principal.Role.String()),
					slog.Any("required", actions))
			}
			httpx.RespondError(w, shared.ErrForbidden)
		})
	}
}

func (m Middleware) service() *Service {
	if m.Service == nil {
		return NewService()
	}
	return m.Service
}

func hasAny(granted roles.ActionSet, required []roles.Action) bool {
	for _, a := range required {
		if granted.Has(a) {
			return true
		}
	}
	return false
}

func hasAll(granted roles.ActionSet, required []roles.Action) bool {
	for _, a := range required {
		if !granted.Has(a) {
			return false
		}
	}
	return true
}
