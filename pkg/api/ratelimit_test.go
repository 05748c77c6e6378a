package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmw "github.com/atelierhq/atelier/pkg/middleware"
	"github.com/atelierhq/atelier/pkg/observability"
)

func setupRateLimitedEnv(t *testing.T, limit int) (*testEnv, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, nil)
	limiter := appmw.NewRateLimiter(client, logger, limit, time.Minute)
	return setupTestEnvWithLimiter(t, limiter), mr
}

func TestRateLimitKeyedByPrincipal(t *testing.T) {
	env, mr := setupRateLimitedEnv(t, 100)
	userID := env.seedUser(t, "limited@studio.test")

	rec := env.request(t, http.MethodGet, "/v1/me", nil, userID, "limited@studio.test")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], fmt.Sprintf("atelier:ratelimit:user:%d:", userID),
		"authenticated traffic must count against the principal, not the client IP")
}

func TestRateLimitKeyedByIPOnPublicRoutes(t *testing.T) {
	env, mr := setupRateLimitedEnv(t, 100)

	rec := env.request(t, http.MethodPost, "/v1/auth/magic-link",
		map[string]string{"email": "nobody@studio.test"}, 0, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "atelier:ratelimit:ip:")
}

func TestRateLimitExceeded(t *testing.T) {
	env, _ := setupRateLimitedEnv(t, 1)
	userID := env.seedUser(t, "busy@studio.test")

	rec := env.request(t, http.MethodGet, "/v1/me", nil, userID, "busy@studio.test")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/v1/me", nil, userID, "busy@studio.test")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}
