package projects

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Handler serves /api/projects.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers project routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/access", h.grants)
		r.Post("/access", h.grant)
		r.Delete("/access/{grantId}", h.revoke)
	})
}

type createRequest struct {
	ClientCompanyID string         `json:"clientCompanyId" validate:"required,uuid"`
	Name            string         `json:"name" validate:"required,max=200"`
	Description     string         `json:"description" validate:"max=4000"`
	Status          string         `json:"status" validate:"omitempty,oneof=draft active completed archived"`
	Settings        map[string]any `json:"settings"`
	StartDate       *time.Time     `json:"startDate"`
	EndDate         *time.Time     `json:"endDate"`
}

type grantRequest struct {
	UserID      string `json:"userId" validate:"omitempty,uuid"`
	CompanyID   string `json:"companyId" validate:"omitempty,uuid"`
	AccessLevel string `json:"accessLevel" validate:"omitempty,oneof=view edit"`
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	projects, err := h.service.List(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "list projects", err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.Create(r.Context(), principal.UserID, CreateInput{
		ClientCompanyID: req.ClientCompanyID,
		Name:            req.Name,
		Description:     req.Description,
		Status:          store.ProjectStatus(req.Status),
		Settings:        req.Settings,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	})
	if err != nil {
		h.fail(w, "create project", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.Get(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "get project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) grants(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grants, err := h.service.Grants(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "list project grants", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req grantRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	grant, err := h.service.Grant(r.Context(), principal.UserID, id, GrantInput{
		UserID:      req.UserID,
		CompanyID:   req.CompanyID,
		AccessLevel: store.AccessLevel(req.AccessLevel),
	})
	if err != nil {
		h.fail(w, "grant project access", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grantID, err := httpx.PathID(r, "grantId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Revoke(r.Context(), principal.UserID, id, grantID); err != nil {
		h.fail(w, "revoke project access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
