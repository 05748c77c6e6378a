package identity

import (
	"net/http"

	"github.com/atelierhq/atelier/pkg/contextkeys"
	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/middleware"
)

// Middleware provides identity resolution and capability guards for HTTP
// routes
type Middleware struct {
	resolver *Resolver
}

// NewMiddleware creates identity middleware over the given resolver
func NewMiddleware(resolver *Resolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// ResolveIdentity resolves the authenticated principal's identity and adds
// it to the request context. Requests without a principal pass through
// untouched; guards downstream reject them.
func (m *Middleware) ResolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipal(r)
		if principal == nil {
			next.ServeHTTP(w, r)
			return
		}

		id := m.resolver.Resolve(r.Context(), principal.ID)
		ctx := contextkeys.WithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromRequest extracts the resolved identity from the request context
func FromRequest(r *http.Request) *ResolvedIdentity {
	v := r.Context().Value(contextkeys.IdentityKey)
	if v == nil {
		return nil
	}
	id, ok := v.(*ResolvedIdentity)
	if !ok {
		return nil
	}
	return id
}

// RequireCapability creates middleware that rejects requests whose resolved
// identity lacks the capability. Resolution failures surface here as guest
// capabilities, so the worst case is a 403, never a 5xx.
func (m *Middleware) RequireCapability(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromRequest(r)
			if id == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !id.Permissions.Has(capability) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireStudioMember creates middleware that only admits studio members
func (m *Middleware) RequireStudioMember() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromRequest(r)
			if id == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !id.IsStudioMember {
				httputil.WriteForbidden(w, "studio membership required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole creates middleware that requires one of the given roles
func (m *Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromRequest(r)
			if id == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			httputil.WriteForbidden(w, "required role not found")
		})
	}
}
