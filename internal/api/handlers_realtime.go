// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/models"
)

// VideoSyncRequest is a host playback broadcast: a discrete transition
// with the absolute position it happened at.
type VideoSyncRequest struct {
	Action      string  `json:"action" validate:"required,oneof=play pause seek"`
	CurrentTime float64 `json:"currentTime" validate:"min=0"`
	IsPlaying   bool    `json:"isPlaying"`
}

// ChatRequest is one chat message.
type ChatRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// VideoSync handles POST /api/v1/sync/{id}. Host only; the service
// enforces authority.
func (h *Handler) VideoSync(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}

	var req VideoSyncRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	err := h.svc.PublishVideoUpdate(r.Context(), identity, chi.URLParam(r, "id"), models.VideoUpdate{
		Action:      req.Action,
		CurrentTime: req.CurrentTime,
		IsPlaying:   req.IsPlaying,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "Video sync sent"})
}

// Chat handles POST /api/v1/chat/{id}. Any participant may send.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}

	var req ChatRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.svc.PublishChat(r.Context(), identity, chi.URLParam(r, "id"), req.Text); err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "Message sent"})
}
