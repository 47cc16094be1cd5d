package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware returns an HTTP middleware that authenticates requests.
// Extracts the token from the Authorization header (Bearer scheme); both
// signed JWTs and guest literals are accepted. The identity is stored in
// the request context.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization format"}`, http.StatusUnauthorized)
				return
			}

			ident, err := jwtMgr.VerifyBearer(parts[1])
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity from the request
// context.
func IdentityFromContext(ctx context.Context) Identity {
	ident, _ := ctx.Value(identityKey).(Identity)
	return ident
}

// UserIDFromContext extracts the authenticated user ID from the request
// context, or empty string.
func UserIDFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).UserID
}
