// Package middleware holds the HTTP middleware of the query service.
package middleware

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// APIKey enforces the shared-key scheme: the X-API-Key header must
// equal the configured key. An empty configured key disables the check.
type APIKey struct {
	key string
}

// NewAPIKey creates the middleware for one configured key.
func NewAPIKey(key string) *APIKey {
	return &APIKey{key: key}
}

// Middleware rejects requests without the right key.
func (a *APIKey) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.key != "" && r.Header.Get("X-API-Key") != a.key {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if err := json.NewEncoder(w).Encode(map[string]any{
				"error":   "Unauthorized",
				"message": "invalid api key",
			}); err != nil {
				log.WithError(err).Warn("failed to encode auth error")
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}
