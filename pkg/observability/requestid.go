package observability

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDMiddleware assigns each request an ID, echoes it in the
// X-Request-ID response header and stores a logger carrying it in the
// request context. Inbound X-Request-ID values are honored so IDs
// survive proxies.
func RequestIDMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := WithRequestID(r.Context(), requestID)
			ctx = WithLogger(ctx, logger.WithField("request_id", requestID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
