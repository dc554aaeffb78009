// Package audithttp serves the activity timeline over HTTP.
package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clientportal/portal/internal/audit"
	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	dateLayout       = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]store.ActivityEntry, error)
}

// Authorizer resolves the actions a role may perform.
type Authorizer interface {
	EffectivePermissions(role roles.Role) roles.ActionSet
}

// Handler serves activity timeline requests.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    Authorizer
	now     func() time.Time
}

// NewHandler builds an activity handler.
func NewHandler(logger *slog.Logger, service TimelineService, rbac Authorizer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:  logger,
		service: service,
		rbac:    rbac,
		now:     time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load activity timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export activity timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"activity.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) authorize(ctx context.Context) error {
	principal, ok := shared.PrincipalFromContext(ctx)
	if !ok {
		return shared.ErrNotAuthenticated
	}
	var granted roles.ActionSet
	if h.rbac != nil {
		granted = h.rbac.EffectivePermissions(principal.Role)
	} else {
		granted = roles.PermittedActions(principal.Role)
	}
	if !granted.Has(roles.ActionActivityRead) {
		return shared.ErrForbidden
	}
	return nil
}

// parseFilters reads from/to as inclusive calendar days in UTC.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	today := h.now().UTC().Truncate(24 * time.Hour)

	to := today
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, fmt.Errorf("%w: to must be YYYY-MM-DD", shared.ErrValidation)
		}
		to = parsed
	}
	from := to.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, fmt.Errorf("%w: from must be YYYY-MM-DD", shared.ErrValidation)
		}
		from = parsed
	}
	if from.After(to) {
		return audit.TimelineFilters{}, fmt.Errorf("%w: from is after to", shared.ErrValidation)
	}
	if to.Sub(from) > maxDateRange {
		return audit.TimelineFilters{}, fmt.Errorf("%w: range exceeds 90 days", shared.ErrValidation)
	}

	page, err := positiveInt(q.Get("page"), 1, "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	pageSize, err := positiveInt(q.Get("page_size"), 0, "page_size")
	if err != nil {
		return audit.TimelineFilters{}, err
	}

	return audit.TimelineFilters{
		From:         from,
		To:           to.Add(24 * time.Hour),
		UserID:       strings.TrimSpace(q.Get("userId")),
		ResourceType: strings.TrimSpace(q.Get("resourceType")),
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

func positiveInt(raw string, fallback int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", shared.ErrValidation, field)
	}
	return n, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}
