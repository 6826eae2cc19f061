package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/fieldops/internal/platform/httpx"
	"github.com/odyssey-erp/fieldops/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/signup", h.handleSignup)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	SalesmanID string `json:"salesmanId" validate:"required"`
	Pin        string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

type signupRequest struct {
	SalesmanID   string `json:"salesmanId" validate:"required,max=64"`
	SalesmanName string `json:"salesmanName" validate:"required,max=128"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	Pin          string `json:"pin" validate:"omitempty,numeric,min=4,max=8"`
}

type signupResponse struct {
	UserID     string `json:"userId"`
	SalesmanID string `json:"salesmanId"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sess, err := h.service.Login(r.Context(), req.SalesmanID, req.Pin)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if cookieSess := shared.SessionFromContext(r.Context()); cookieSess != nil {
		cookieSess.Rotate()
		cookieSess.SetUser(sess.UserID)
		cookieSess.Set(shared.SessionKeySalesmanID, sess.SalesmanID)
		cookieSess.Set(shared.SessionKeyRole, string(sess.Role))
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Signup(r.Context(), SignupInput{
		SalesmanID:   req.SalesmanID,
		SalesmanName: req.SalesmanName,
		Email:        req.Email,
		Phone:        req.Phone,
		Pin:          req.Pin,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, signupResponse{UserID: user.ID, SalesmanID: user.SalesmanID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.service.Logout(r.Context(), sess.User())
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sess, err := h.service.Restore(r.Context(), principal.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInvalidPin):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrDuplicateSalesman):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("auth request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
