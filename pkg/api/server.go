// Package api exposes the HTTP API: authentication, identity, tenants,
// projects, and media.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	appmw "github.com/atelierhq/atelier/pkg/middleware"
	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/media"
	"github.com/atelierhq/atelier/pkg/observability"
	"github.com/atelierhq/atelier/pkg/projects"
	"github.com/atelierhq/atelier/pkg/studio"
)

// Server is the HTTP API server
type Server struct {
	router *mux.Router

	authHandlers     *AuthHandlers
	identityHandlers *IdentityHandlers
	studioHandlers   *StudioHandlers
	projectHandlers  *ProjectHandlers
	mediaHandlers    *MediaHandlers
}

// Deps are the server's dependencies
type Deps struct {
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	Authenticator *appmw.Authenticator
	RateLimiter   *appmw.RateLimiter
	IdentityMW    *identity.Middleware
	Auth          *AuthHandlers
	Identity      *IdentityHandlers
	Studios       *studio.Service
	Invitations   *studio.InvitationService
	Projects      *projects.Service
	Media         *media.Service
}

// NewServer creates the API server and wires all routes
func NewServer(deps Deps) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		authHandlers:     deps.Auth,
		identityHandlers: deps.Identity,
		studioHandlers:   NewStudioHandlers(deps.Studios, deps.Invitations, deps.Logger),
		projectHandlers:  NewProjectHandlers(deps.Projects, deps.Logger),
		mediaHandlers:    NewMediaHandlers(deps.Media, deps.Logger),
	}

	s.router.Use(appmw.RequestID)

	// public routes: sign-in flows, rate limited by client IP
	public := s.router.PathPrefix("/v1/auth").Subrouter()
	if deps.RateLimiter != nil {
		public.Use(deps.RateLimiter.Limit)
	}
	s.authHandlers.RegisterRoutes(public)

	// authenticated routes: session token required, identity resolved. The
	// limiter runs after Authenticate so it keys by principal, not IP.
	authed := s.router.PathPrefix("/v1").Subrouter()
	authed.Use(deps.Authenticator.Authenticate)
	if deps.RateLimiter != nil {
		authed.Use(deps.RateLimiter.Limit)
	}
	authed.Use(deps.IdentityMW.ResolveIdentity)

	s.identityHandlers.RegisterRoutes(authed)
	s.studioHandlers.RegisterRoutes(authed, deps.IdentityMW)
	s.projectHandlers.RegisterRoutes(authed, deps.IdentityMW)
	s.mediaHandlers.RegisterRoutes(authed, deps.IdentityMW)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for instrumentation
func (s *Server) Router() *mux.Router {
	return s.router
}
