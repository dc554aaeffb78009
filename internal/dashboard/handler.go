package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/shared"
)

// Handler serves /api/dashboard.
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

// MountRoutes registers dashboard routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stats", h.stats)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), principal.UserID)
	if err != nil {
		if httpx.StatusOf(err) == http.StatusInternalServerError {
			h.logger.Error("dashboard stats", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
