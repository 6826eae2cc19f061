package distributions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/fieldops/internal/platform/httpx"
	"github.com/odyssey-erp/fieldops/internal/rbac"
	"github.com/odyssey-erp/fieldops/internal/shared"
)

// Handler exposes the distribution picker.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers distribution routes for any logged-in user.
func (h *Handler) MountRoutes(r chi.Router, rbacMW rbac.Middleware) {
	r.Route("/distributions", func(r chi.Router) {
		r.Use(rbacMW.RequireAuth)
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sel, err := h.service.Visible(r.Context(), principal.UserID, principal.Role == "admin", r.URL.Query().Get("current"))
	if err != nil {
		h.logger.Error("list distributions", slog.String("user_id", principal.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sel)
}
