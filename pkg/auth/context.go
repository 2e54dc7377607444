package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UserKey contextKey = "user"

func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserKey, claims)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserKey).(*Claims)
	return claims, ok
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter for browser websocket clients.
func TokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	// The scheme is case-insensitive.
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return header
}

// Authenticate extracts and validates the request's token.
func (v *Verifier) Authenticate(r *http.Request) (*Claims, error) {
	return v.ValidateToken(TokenFromRequest(r))
}
