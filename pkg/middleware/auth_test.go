package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/observability"
)

func testAuthenticator(t *testing.T) (*Authenticator, *auth.JWTManager) {
	t.Helper()
	jwt := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewAuthenticator(jwt, logger), jwt
}

func TestAuthenticateValidToken(t *testing.T) {
	authn, jwt := testAuthenticator(t)

	token, err := jwt.Issue(&auth.Principal{ID: 7, Email: "maya@studio.test"})
	require.NoError(t, err)

	var seen *auth.Principal
	handler := authn.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.ID)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	authn, _ := testAuthenticator(t)

	handler := authn.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateBadToken(t *testing.T) {
	authn, _ := testAuthenticator(t)

	handler := authn.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	for _, header := range []string{
		"Bearer garbage",
		"Basic dXNlcjpwYXNz",
		"Bearer",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	authn, jwt := testAuthenticator(t)

	var seen *auth.Principal
	handler := authn.OptionalAuthenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r)
		w.WriteHeader(http.StatusOK)
	}))

	// no token: passes through with nil principal
	req := httptest.NewRequest(http.MethodGet, "/v1/studios", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)

	// valid token: principal attached
	token, err := jwt.Issue(&auth.Principal{ID: 3, Email: "leo@studio.test"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/v1/studios", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.NotNil(t, seen)
	assert.Equal(t, int64(3), seen.ID)
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// inbound ID is honored
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
