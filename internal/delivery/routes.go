package delivery

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/fieldops/internal/rbac"
)

// Roles allowed on courier routes.
var courierRoles = []string{"delivery", "admin"}

// MountRoutes wires all delivery domain routes behind the courier role gate.
func MountRoutes(r chi.Router, handler *Handler, rbacMW rbac.Middleware) {
	r.Route("/delivery", func(r chi.Router) {
		r.Use(rbacMW.RequireRole(courierRoles...))
		handler.MountRoutes(r)
	})
}
