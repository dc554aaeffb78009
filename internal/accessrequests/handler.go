package accessrequests

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// IdempotencyHeader carries the client's deduplication key on submission.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves /api/access-requests.
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

// MountRoutes registers the public submission route and, behind authn, the
// review routes.
func (h *Handler) MountRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/", h.submit)
	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Get("/", h.pending)
		r.Patch("/{id}", h.review)
	})
}

type submitRequest struct {
	Email         string `json:"requesterEmail" validate:"required,email"`
	Name          string `json:"requesterName" validate:"required,max=200"`
	CompanyID     string `json:"companyId" validate:"omitempty,uuid"`
	RequestedRole string `json:"requestedRole" validate:"required"`
	Message       string `json:"message" validate:"max=2000"`
}

type reviewRequest struct {
	Status    string `json:"status" validate:"required,oneof=approved denied"`
	CompanyID string `json:"companyId" validate:"omitempty,uuid"`
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := roles.Parse(req.RequestedRole)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Submit(r.Context(), SubmitInput{
		Email:          req.Email,
		Name:           req.Name,
		CompanyID:      req.CompanyID,
		RequestedRole:  role,
		Message:        req.Message,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, "submit access request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	pending, err := h.service.Pending(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "list access requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pending)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reviewRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Review(r.Context(), principal.UserID, id, ReviewInput{
		Status:    store.RequestStatus(req.Status),
		CompanyID: req.CompanyID,
	})
	if err != nil {
		h.fail(w, "review access request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result.Request)
}
