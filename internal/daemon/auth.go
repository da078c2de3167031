package daemon

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"scriber/internal/logging"
	"scriber/internal/services"
)

// correlationMiddleware assigns each request an identifier carried on
// the request context, so handler and component logs for one request
// share a correlation_id field.
func correlationMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		logging.WithContext(ctx, logger).Debug("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware validates bearer tokens. An empty token disables
// authentication entirely.
func authMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
