package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/pkg/contextkeys"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a correlation ID to each request, honoring an
// inbound X-Request-ID header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
