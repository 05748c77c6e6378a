package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/atelierhq/atelier/pkg/async"
	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/observability"
)

// AuthHandlers serves the sign-in endpoints
type AuthHandlers struct {
	store        *auth.Store
	jwt          *auth.JWTManager
	oidc         *auth.OIDCAuthenticator
	mailer       auth.Mailer
	logger       *observability.Logger
	magicLinkTTL time.Duration
}

// NewAuthHandlers creates the auth handlers. oidc may be nil when no
// provider is configured.
func NewAuthHandlers(store *auth.Store, jwt *auth.JWTManager, oidc *auth.OIDCAuthenticator, mailer auth.Mailer, logger *observability.Logger, magicLinkTTL time.Duration) *AuthHandlers {
	if magicLinkTTL <= 0 {
		magicLinkTTL = 15 * time.Minute
	}
	return &AuthHandlers{
		store:        store,
		jwt:          jwt,
		oidc:         oidc,
		mailer:       mailer,
		logger:       logger,
		magicLinkTTL: magicLinkTTL,
	}
}

// RegisterRoutes registers the public auth routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/magic-link", h.requestMagicLink).Methods("POST")
	router.HandleFunc("/verify", h.verifyMagicLink).Methods("POST")
	if h.oidc != nil {
		router.HandleFunc("/oidc/login", h.oidcLogin).Methods("GET")
		router.HandleFunc("/oidc/callback", h.oidcCallback).Methods("GET")
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

// requestMagicLink handles POST /v1/auth/magic-link. The response is the
// same whether or not the email has an account, so the endpoint cannot be
// used to probe for accounts.
func (h *AuthHandlers) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			h.logger.WithError(err).Error("magic link user lookup failed")
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
		return
	}

	token, err := h.store.CreateMagicLink(r.Context(), user.ID, h.magicLinkTTL)
	if err != nil {
		h.logger.WithError(err).Error("magic link creation failed")
		httputil.WriteInternalError(w)
		return
	}

	// Delivery happens off the request path; the response is already
	// committed to "sent" and must not vary with mailer outcome.
	email := user.Email
	async.Go(h.logger, 30*time.Second, "magic link email", func(ctx context.Context) error {
		return h.mailer.SendMagicLink(ctx, email, token)
	})

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type verifyRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// verifyMagicLink handles POST /v1/auth/verify, exchanging a magic-link
// token for a session token.
func (h *AuthHandlers) verifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.store.ConsumeMagicLink(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenNotFound),
			errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, auth.ErrTokenUsed):
			httputil.WriteUnauthorized(w, "invalid or expired token")
		default:
			h.logger.WithError(err).Error("magic link verification failed")
			httputil.WriteInternalError(w)
		}
		return
	}

	session, err := h.jwt.Issue(&auth.Principal{ID: user.ID, Email: user.Email})
	if err != nil {
		h.logger.WithError(err).Error("session token issuance failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sessionResponse{Token: session, User: user})
}

const oidcStateCookie = "atelier_oidc_state"

// oidcLogin handles GET /v1/auth/oidc/login
func (h *AuthHandlers) oidcLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/v1/auth/oidc",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}

// oidcCallback handles GET /v1/auth/oidc/callback
func (h *AuthHandlers) oidcCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oidcStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	idn, err := h.oidc.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.WithError(err).Warn("oidc exchange failed")
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), idn.Email)
	if errors.Is(err, auth.ErrUserNotFound) {
		user, err = h.store.CreateUser(r.Context(), idn.Email, idn.Name)
	}
	if err != nil {
		h.logger.WithError(err).Error("oidc user lookup failed")
		httputil.WriteInternalError(w)
		return
	}

	session, err := h.jwt.Issue(&auth.Principal{ID: user.ID, Email: user.Email})
	if err != nil {
		h.logger.WithError(err).Error("session token issuance failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sessionResponse{Token: session, User: user})
}
