// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	gws "github.com/gorilla/websocket"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/logging"
	ws "github.com/cinesync/cinesync/internal/websocket"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware in front of
		// the upgrade; the bearer token gates actual access.
		return true
	},
}

// PartyWebSocket handles GET /api/v1/parties/{id}/ws. Membership is
// checked before the upgrade so an outsider never holds a subscription.
func (h *Handler) PartyWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}
	partyID := chi.URLParam(r, "id")

	if err := h.svc.Authorize(r.Context(), identity, partyID); err != nil {
		respondServiceError(w, err)
		return
	}

	// The subscription must outlive the request context, which ends when
	// this handler returns after the upgrade. The client releases it.
	sub, err := h.bus.Subscribe(context.Background(), partyID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		logging.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, h.svc, sub, partyID, identity)
	h.hub.Register <- client
	client.Start()
}
