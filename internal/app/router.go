package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clientportal/portal/internal/accessrequests"
	audithttp "github.com/clientportal/portal/internal/audit/http"
	"github.com/clientportal/portal/internal/auth"
	"github.com/clientportal/portal/internal/companies"
	"github.com/clientportal/portal/internal/dashboard"
	"github.com/clientportal/portal/internal/digitalaudits"
	"github.com/clientportal/portal/internal/observability"
	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/projects"
	"github.com/clientportal/portal/internal/rbac"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/users"
	"github.com/clientportal/portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are not mounted.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	// Authenticate resolves the bearer token into a principal. Required
	// whenever any protected handler is set.
	Authenticate func(http.Handler) http.Handler

	AuthHandler    *auth.Handler
	AccessRequests *accessrequests.Handler
	Companies      *companies.Handler
	Users          *users.Handler
	Projects       *projects.Handler
	Audits         *digitalaudits.Handler
	Dashboard      *dashboard.Handler
	Activity       *audithttp.Handler
	Permissions    *rbac.PermissionsHandler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	authn := params.Authenticate
	if authn == nil {
		authn = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				httpx.RespondError(w, shared.ErrNotAuthenticated)
			})
		}
	}
	sensitive := postOnly(rateLimiter(sensitivePerMinute(params.Config)))

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Use(sensitive)
				params.AuthHandler.MountRoutes(r, authn)
			})
		}
		if params.AccessRequests != nil {
			r.Route("/access-requests", func(r chi.Router) {
				r.Use(sensitive)
				params.AccessRequests.MountRoutes(r, authn)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(authn)
			if params.Companies != nil {
				r.Route("/companies", params.Companies.MountRoutes)
			}
			if params.Users != nil {
				r.Route("/users", params.Users.MountRoutes)
			}
			if params.Projects != nil {
				r.Route("/projects", params.Projects.MountRoutes)
			}
			if params.Audits != nil {
				r.Route("/audits", params.Audits.MountRoutes)
			}
			if params.Dashboard != nil {
				r.Route("/dashboard", params.Dashboard.MountRoutes)
			}
			if params.Activity != nil {
				r.Route("/activity", params.Activity.MountRoutes)
			}
			if params.Permissions != nil {
				r.Route("/permissions", params.Permissions.MountRoutes)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "No route matches "+r.URL.Path)
	})
	return r
}

func sensitivePerMinute(cfg *Config) int {
	if cfg == nil || cfg.SensitiveRateLimitPerMinute <= 0 {
		return 10
	}
	return cfg.SensitiveRateLimitPerMinute
}

// NewServer wraps handler in an http.Server using the configured timeouts.
func NewServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           handler,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
