package companies

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Handler serves /api/companies.
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

// MountRoutes registers company routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/children", h.children)
}

type createRequest struct {
	Type         string         `json:"type" validate:"required,oneof=partner client sub"`
	ParentID     string         `json:"parentId" validate:"omitempty,uuid"`
	Name         string         `json:"name" validate:"required,max=200"`
	Domain       string         `json:"domain" validate:"omitempty,fqdn"`
	LogoURL      string         `json:"logoUrl" validate:"omitempty,url"`
	PrimaryColor string         `json:"primaryColor" validate:"omitempty,hexcolor"`
	Settings     map[string]any `json:"settings"`
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	companies, err := h.service.List(r.Context(), principal.UserID, store.CompanyType(r.URL.Query().Get("type")))
	if err != nil {
		h.fail(w, "list companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, companies)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	company, err := h.service.Create(r.Context(), principal.UserID, CreateInput{
		Type:         store.CompanyType(req.Type),
		ParentID:     req.ParentID,
		Name:         req.Name,
		Domain:       req.Domain,
		LogoURL:      req.LogoURL,
		PrimaryColor: req.PrimaryColor,
		Settings:     req.Settings,
	})
	if err != nil {
		h.fail(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, company)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	company, err := h.service.Get(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "get company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) children(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	recursive, _ := strconv.ParseBool(r.URL.Query().Get("recursive"))
	children, err := h.service.Children(r.Context(), principal.UserID, id, recursive)
	if err != nil {
		h.fail(w, "list child companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, children)
}
