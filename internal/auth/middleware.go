// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/cinesync/cinesync/internal/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity returns a context carrying the authenticated
// identity. Exposed for tests and the websocket upgrade path.
func ContextWithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the authenticated identity placed by the
// Authenticate middleware.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(models.Identity)
	return identity, ok && identity.Valid()
}

// Middleware provides request authentication for the HTTP API.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates an authentication middleware backed by the given
// token manager.
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Authenticate enforces a valid bearer token and places the resulting
// identity in the request context. It is chi-compatible.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w, "authentication required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := ContextWithIdentity(r.Context(), claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken pulls the bearer token from the Authorization header, or
// from the "token" query parameter as a fallback for websocket clients
// that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // best-effort error body
	w.Write([]byte(`{"status":"error","error":{"code":"AUTHENTICATION_ERROR","message":"` + message + `"}}`))
}
