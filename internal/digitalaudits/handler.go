package digitalaudits

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Handler serves /api/audits.
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

// MountRoutes registers audit routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/publish", h.publish)
}

type createRequest struct {
	ClientCompanyID string     `json:"clientCompanyId" validate:"required,uuid"`
	Title           string     `json:"title" validate:"required,max=300"`
	HTMLContent     string     `json:"htmlContent" validate:"required"`
	Status          string     `json:"status" validate:"omitempty,oneof=draft review"`
	AccessType      string     `json:"accessType" validate:"omitempty,oneof=permanent temporary"`
	AccessExpiresAt *time.Time `json:"accessExpiresAt" validate:"required_if=AccessType temporary"`
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	audits, err := h.service.List(r.Context(), principal.UserID, r.URL.Query().Get("clientCompanyId"))
	if err != nil {
		h.fail(w, "list digital audits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, audits)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	audit, err := h.service.Create(r.Context(), principal.UserID, CreateInput{
		ClientCompanyID: req.ClientCompanyID,
		Title:           req.Title,
		HTMLContent:     req.HTMLContent,
		Status:          store.AuditStatus(req.Status),
		AccessType:      store.AuditAccessType(req.AccessType),
		AccessExpiresAt: req.AccessExpiresAt,
	})
	if err != nil {
		h.fail(w, "create digital audit", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, audit)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	audit, err := h.service.Get(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "get digital audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, audit)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	audit, err := h.service.Publish(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "publish digital audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, audit)
}
