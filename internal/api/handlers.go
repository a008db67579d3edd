// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"net/http"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/party"
	"github.com/cinesync/cinesync/internal/websocket"
)

// Handler holds the dependencies the HTTP handlers operate on.
type Handler struct {
	svc         *party.Service
	bus         *channel.Bus
	hub         *websocket.Hub
	jwtManager  *auth.JWTManager
	credentials *auth.CredentialStore
}

// NewHandler creates the API handler set.
func NewHandler(svc *party.Service, bus *channel.Bus, hub *websocket.Hub, jwtManager *auth.JWTManager, credentials *auth.CredentialStore) *Handler {
	return &Handler{
		svc:         svc,
		bus:         bus,
		hub:         hub,
		jwtManager:  jwtManager,
		credentials: credentials,
	}
}

// Health reports liveness plus basic fan-out signals.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": h.hub.GetClientCount(),
	})
}

// HealthLive is the liveness probe: the process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: the registry answers queries.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.ListActive(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "INTERNAL_ERROR", "Registry unavailable", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"})
}
