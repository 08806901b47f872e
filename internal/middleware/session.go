package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
)

const (
	userIDHeader     = "X-User-ID"
	adminTokenHeader = "X-Admin-Token"

	userIDKey contextKey = "user_id"
)

// Session lifts the caller's identity header into the request context.
// Authentication proper lives at the edge; this server trusts the header it
// receives from the gateway.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get(userIDHeader); uid != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, uid))
		}
		next.ServeHTTP(w, r)
	})
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// RequireAdmin gates a subtree behind the shared admin token. An empty
// configured token disables the subtree entirely.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(adminTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
