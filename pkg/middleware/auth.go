// Package middleware provides HTTP middleware: session authentication,
// request correlation, and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/contextkeys"
	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/observability"
)

// Authenticator validates session tokens and attaches the principal to
// the request context
type Authenticator struct {
	jwt    *auth.JWTManager
	logger *observability.Logger
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(jwt *auth.JWTManager, logger *observability.Logger) *Authenticator {
	return &Authenticator{jwt: jwt, logger: logger}
}

// Authenticate requires a valid Bearer session token
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := a.principalFromRequest(r)
		if !ok {
			httputil.WriteUnauthorized(w, "invalid or missing session token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticate attaches the principal when a valid token is
// present, and passes the request through otherwise.
func (a *Authenticator) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := a.principalFromRequest(r); ok {
			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			ctx = contextkeys.WithUserID(ctx, principal.ID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) principalFromRequest(r *http.Request) (*auth.Principal, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}

	principal, err := a.jwt.Verify(parts[1])
	if err != nil {
		a.logger.WithError(err).Debug("session token rejected")
		return nil, false
	}
	return principal, true
}

// GetPrincipal returns the authenticated principal from the request
// context, or nil when unauthenticated.
func GetPrincipal(r *http.Request) *auth.Principal {
	principal, _ := r.Context().Value(contextkeys.PrincipalKey).(*auth.Principal)
	return principal
}
