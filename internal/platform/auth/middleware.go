package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey struct{}

// WithAdmin stores verified admin claims on ctx.
func WithAdmin(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// AdminFromContext returns the admin claims set by RequireAdmin.
func AdminFromContext(ctx context.Context) (*AdminClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(contextKey{}).(*AdminClaims)
	return claims, ok && claims != nil
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (t *TokenIssuer) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if t == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}
			claims, err := t.Verify(token)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					respondAuthError(w, http.StatusUnauthorized, "token_expired", "admin token expired; log in again")
					return
				}
				respondAuthError(w, http.StatusUnauthorized, "invalid_token", "admin token invalid")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), claims)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
