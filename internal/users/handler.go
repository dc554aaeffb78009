package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/rbac"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(roles.ActionUserManage))
		r.Post("/", h.create)
		r.Post("/invite", h.invite)
	})
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"omitempty,min=6"`
	FirstName string   `json:"firstName" validate:"required,max=100"`
	LastName  string   `json:"lastName" validate:"required,max=100"`
	CompanyID string   `json:"companyId" validate:"required,uuid"`
	Role      string   `json:"role" validate:"required"`
	Tags      []string `json:"tags" validate:"omitempty,dive,max=50"`
}

type inviteRequest struct {
	Email     string `json:"email" validate:"required,email"`
	CompanyID string `json:"companyId" validate:"required,uuid"`
	Role      string `json:"role" validate:"required"`
}

type updateRequest struct {
	Email     *string  `json:"email" validate:"omitempty,email"`
	FirstName *string  `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string  `json:"lastName" validate:"omitempty,min=1,max=100"`
	CompanyID *string  `json:"companyId" validate:"omitempty,uuid"`
	Role      *string  `json:"role"`
	Tags      []string `json:"tags" validate:"omitempty,dive,max=50"`
	IsActive  *bool    `json:"isActive"`
}

func (req updateRequest) patch() (store.UserPatch, error) {
	patch := store.UserPatch{
		CompanyID: req.CompanyID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Tags:      req.Tags,
		IsActive:  req.IsActive,
	}
	if req.Role != nil {
		role, err := roles.Parse(*req.Role)
		if err != nil {
			return store.UserPatch{}, err
		}
		patch.Role = &role
	}
	return patch, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	list, err := h.service.List(r.Context(), principal.UserID, r.URL.Query().Get("companyId"))
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), principal.UserID, CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CompanyID: req.CompanyID,
		Role:      role,
		Tags:      req.Tags,
	})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req inviteRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	request, err := h.service.Invite(r.Context(), principal.UserID, InviteInput{Email: req.Email, CompanyID: req.CompanyID, Role: role})
	if err != nil {
		h.fail(w, "invite user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, request)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Update(r.Context(), principal.UserID, id, patch)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal.UserID, id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
