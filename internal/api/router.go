// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/middleware"
)

// Router assembles the HTTP control plane.
type Router struct {
	handler        *Handler
	chiMiddleware  *ChiMiddleware
	authMiddleware *auth.Middleware
}

// NewRouter creates the router from its handler set and middleware.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, authMW *auth.Middleware) *Router {
	return &Router{
		handler:        handler,
		chiMiddleware:  chiMW,
		authMiddleware: authMW,
	}
}

// Setup configures all HTTP routes.
//
// Rate limits are keyed by authenticated identity, so the authenticate
// middleware runs before every limiter. Budgets follow the control-plane
// policy: creation is strict, membership updates moderate, and the
// realtime publish endpoints have their own budgets.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCreateParty())
		r.Post("/login", router.handler.Login)
		r.Post("/guest", router.handler.Guest)
	})

	r.Route("/api/v1/parties", func(r chi.Router) {
		r.Use(router.authMiddleware.Authenticate)

		r.With(router.chiMiddleware.RateLimitCreateParty()).Post("/", router.handler.CreateParty)
		r.Get("/", router.handler.ListParties)
		r.Get("/code/{code}", router.handler.GetPartyByCode)
		r.With(router.chiMiddleware.RateLimitUpdateParty()).Post("/code/{code}/join", router.handler.JoinPartyByCode)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", router.handler.GetParty)
			r.With(router.chiMiddleware.RateLimitUpdateParty()).Put("/", router.handler.UpdateParty)
			r.With(router.chiMiddleware.RateLimitPartyEnd()).Post("/end", router.handler.EndParty)
			r.With(router.chiMiddleware.RateLimitPartyEnd()).Delete("/", router.handler.DeleteParty)
			r.Get("/ws", router.handler.PartyWebSocket)
		})
	})

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(router.authMiddleware.Authenticate)
		r.Use(router.chiMiddleware.RateLimitVideoSync())
		r.Post("/{id}", router.handler.VideoSync)
	})

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(router.authMiddleware.Authenticate)
		r.Use(router.chiMiddleware.RateLimitChat())
		r.Post("/{id}", router.handler.Chat)
	})

	return r
}
