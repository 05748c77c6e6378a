package api

import (
	"net/http"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/middleware"
)

// principalOrUnauthorized returns the authenticated principal, writing a
// 401 response and returning nil when absent.
func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) *auth.Principal {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return principal
}
