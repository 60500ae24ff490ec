package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lzjever/mbos-irp/internal/auth"
)

const bearerPrefix = "Bearer "

// RequireAuth verifies the bearer token and stores the verified claims
// in the request context.
func RequireAuth(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				writeAuthError(w, http.StatusUnauthorized, "IRP_UNAUTHORIZED", "missing bearer token")
				return
			}
			claims, err := a.ParseToken(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "IRP_UNAUTHORIZED", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin rejects tokens without the admin claim. Must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok || !claims.Admin {
			writeAuthError(w, http.StatusForbidden, "IRP_FORBIDDEN", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
}
