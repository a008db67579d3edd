// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/config"
	"github.com/cinesync/cinesync/internal/models"
)

// ChiMiddleware provides Chi-compatible middleware factories built on the
// production-hardened Chi ecosystem implementations.
type ChiMiddleware struct {
	security *config.SecurityConfig
	cors     func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory from the security
// configuration. With no configured origins the CORS layer allows any
// origin; deployments are expected to pin security.cors_origins.
func NewChiMiddleware(security *config.SecurityConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &ChiMiddleware{
		security: security,
		cors:     corsHandler,
	}
}

// CORS returns the Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// keyByIdentity keys rate limits on the authenticated user so one
// heavy viewer cannot consume the budget of everyone behind a NAT.
// Unauthenticated requests fall back to the client IP.
func keyByIdentity(r *http.Request) (string, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.ID, nil
	}
	return httprate.KeyByIP(r)
}

// rateLimitExceeded responds with the common envelope and a Retry-After
// hint instead of httprate's plain-text default.
func rateLimitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := int(window.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondJSON(w, http.StatusTooManyRequests, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:       "RATE_LIMIT_EXCEEDED",
				Message:    "Too many requests, slow down",
				RetryAfter: retryAfter,
			},
		})
	}
}

// RateLimit builds a per-identity limiter for one action budget.
func (m *ChiMiddleware) RateLimit(budget config.RateBudget) func(http.Handler) http.Handler {
	if m.security.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		budget.Requests,
		budget.Window,
		httprate.WithKeyFuncs(keyByIdentity),
		httprate.WithLimitHandler(rateLimitExceeded(budget.Window)),
	)
}

// RateLimitCreateParty throttles party creation.
func (m *ChiMiddleware) RateLimitCreateParty() func(http.Handler) http.Handler {
	return m.RateLimit(m.security.CreateParty)
}

// RateLimitUpdateParty throttles membership and state updates.
func (m *ChiMiddleware) RateLimitUpdateParty() func(http.Handler) http.Handler {
	return m.RateLimit(m.security.UpdateParty)
}

// RateLimitVideoSync throttles host playback broadcasts.
func (m *ChiMiddleware) RateLimitVideoSync() func(http.Handler) http.Handler {
	return m.RateLimit(m.security.VideoSync)
}

// RateLimitPartyEnd throttles the end-party action.
func (m *ChiMiddleware) RateLimitPartyEnd() func(http.Handler) http.Handler {
	return m.RateLimit(m.security.PartyEnd)
}

// RateLimitChat throttles chat messages.
func (m *ChiMiddleware) RateLimitChat() func(http.Handler) http.Handler {
	return m.RateLimit(m.security.ChatMessage)
}
