package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/middleware"
)

// IdentityHandlers serves the caller's resolved identity
type IdentityHandlers struct {
	resolver *identity.Resolver
}

// NewIdentityHandlers creates the identity handlers
func NewIdentityHandlers(resolver *identity.Resolver) *IdentityHandlers {
	return &IdentityHandlers{resolver: resolver}
}

// RegisterRoutes registers the identity routes
func (h *IdentityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.me).Methods("GET")
	router.HandleFunc("/me/refresh", h.refresh).Methods("POST")
}

type meResponse struct {
	User        *auth.Principal            `json:"user"`
	Role        identity.Role              `json:"role"`
	Permissions identity.PermissionSet     `json:"permissions"`
	StudioID    *int64                     `json:"studio_id,omitempty"`
	ClientID    *int64                     `json:"client_id,omitempty"`
}

// me handles GET /v1/me
func (h *IdentityHandlers) me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	resolved := identity.FromRequest(r)
	if principal == nil || resolved == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, meResponse{
		User:        principal,
		Role:        resolved.Role,
		Permissions: resolved.Permissions,
		StudioID:    resolved.StudioID,
		ClientID:    resolved.ClientID,
	})
}

// refresh handles POST /v1/me/refresh, dropping the caller's cached
// identity so the next resolution sees fresh membership data.
func (h *IdentityHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	h.resolver.Invalidate(r.Context(), principal.ID)
	resolved := h.resolver.Resolve(r.Context(), principal.ID)

	httputil.WriteJSON(w, http.StatusOK, meResponse{
		User:        principal,
		Role:        resolved.Role,
		Permissions: resolved.Permissions,
		StudioID:    resolved.StudioID,
		ClientID:    resolved.ClientID,
	})
}
