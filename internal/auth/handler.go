package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers auth routes. authn guards the routes that need a session.
func (h *Handler) MountRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/login", h.handleLogin)
	r.Post("/register", h.handleRegister)
	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Post("/change-password", h.handleChangePassword)
		r.Get("/me", h.handleMe)
		r.Post("/logout", h.handleLogout)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	CompanyID string `json:"companyId" validate:"required,uuid"`
	Role      string `json:"role" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Register(r.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CompanyID: req.CompanyID,
		Role:      role,
	})
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req changePasswordRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, "change password", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	profile, err := h.service.CurrentUser(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	token, _ := BearerToken(r)
	if err := h.service.Logout(r.Context(), principal.UserID, token); err != nil {
		h.fail(w, "logout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
