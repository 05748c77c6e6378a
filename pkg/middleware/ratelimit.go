package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/observability"
)

// RateLimiter is a fixed-window rate limiter backed by Redis, so limits
// hold across replicas. Keys are per principal, falling back to client IP
// for unauthenticated requests.
type RateLimiter struct {
	client *redis.Client
	logger *observability.Logger
	limit  int
	window time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
func NewRateLimiter(client *redis.Client, logger *observability.Logger, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, logger: logger, limit: limit, window: window}
}

// Limit enforces the rate limit
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyFor(r)

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			// fail open: a Redis outage must not take requests down
			rl.logger.WithError(err).Warn("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(r.Context(), key, rl.window)
		}

		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > rl.limit {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) keyFor(r *http.Request) string {
	window := time.Now().Unix() / int64(rl.window.Seconds())
	if principal := GetPrincipal(r); principal != nil {
		return fmt.Sprintf("atelier:ratelimit:user:%d:%d", principal.ID, window)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("atelier:ratelimit:ip:%s:%d", host, window)
}
