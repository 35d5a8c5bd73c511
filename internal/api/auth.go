package api

import (
	"context"
	"net/http"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// authMiddleware enforces X-API-Key authentication when keys are configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			respondError(w, http.StatusUnauthorized, "MISSING_API_KEY", "X-API-Key header required")
			return
		}
		if !s.apiKeys[key] {
			respondError(w, http.StatusForbidden, "INVALID_API_KEY", "unknown API key")
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestAPIKey returns the authenticated key, or empty in open mode.
func requestAPIKey(ctx context.Context) string {
	if key, ok := ctx.Value(apiKeyContextKey).(string); ok {
		return key
	}
	return ""
}
