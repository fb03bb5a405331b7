package daemon

import (
	"context"
	"net/http"
	"strings"

	"postflow/internal/services"
)

// ClientVerifier resolves a client review token to its client id.
type ClientVerifier interface {
	Verify(token string) (int64, error)
}

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// clientMiddleware admits requests carrying a valid client token and stores
// the client id on the request context. Without a verifier every request is
// rejected with 503.
func clientMiddleware(verifier ClientVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil {
			http.Error(w, `{"error":"client tokens are not configured"}`, http.StatusServiceUnavailable)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		clientID, err := verifier.Verify(auth)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(services.WithClientID(r.Context(), clientID)))
	}
}

func clientFromContext(ctx context.Context) (int64, bool) {
	return services.ClientIDFromContext(ctx)
}
