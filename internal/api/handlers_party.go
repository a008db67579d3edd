// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/party"
)

// CreatePartyRequest starts a new watch party.
type CreatePartyRequest struct {
	MovieID    string `json:"movieId" validate:"required,min=1,max=128"`
	MovieTitle string `json:"movieTitle" validate:"required,min=1,max=256"`
	PartyName  string `json:"partyName" validate:"required,min=1,max=128"`
	IsPrivate  bool   `json:"isPrivate"`
	Password   string `json:"password" validate:"omitempty,min=4,max=256"`
}

// UpdatePartyRequest carries one membership or state action. The action
// selects which optional fields apply.
type UpdatePartyRequest struct {
	Action      string   `json:"action" validate:"required,oneof=join leave sync end"`
	Password    string   `json:"password" validate:"omitempty,max=256"`
	CurrentTime *float64 `json:"currentTime" validate:"omitempty,min=0"`
	IsPlaying   *bool    `json:"isPlaying"`
}

// CreateParty handles POST /api/v1/parties.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}

	var req CreatePartyRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	created, err := h.svc.Create(r.Context(), identity, party.CreateInput{
		MovieID:    req.MovieID,
		MovieTitle: req.MovieTitle,
		PartyName:  req.PartyName,
		IsPrivate:  req.IsPrivate,
		Secret:     req.Password,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusCreated, created)
}

// ListParties handles GET /api/v1/parties.
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.svc.ListActive(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, parties)
}

// GetParty handles GET /api/v1/parties/{id}.
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, found)
}

// shareCodeRequest validates the share-code path parameter.
type shareCodeRequest struct {
	Code string `validate:"required,sharecode"`
}

// GetPartyByCode handles GET /api/v1/parties/code/{code}.
func (h *Handler) GetPartyByCode(w http.ResponseWriter, r *http.Request) {
	req := shareCodeRequest{Code: chi.URLParam(r, "code")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	found, err := h.svc.GetByShareCode(r.Context(), req.Code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, found)
}

// UpdateParty handles PUT /api/v1/parties/{id}, dispatching on the
// requested action.
func (h *Handler) UpdateParty(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}
	partyID := chi.URLParam(r, "id")

	var req UpdatePartyRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	switch req.Action {
	case "join":
		updated, err := h.svc.Join(r.Context(), identity, party.Ref{ID: partyID}, req.Password)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, updated)

	case "leave":
		updated, err := h.svc.Leave(r.Context(), identity, partyID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, updated)

	case "sync":
		updated, err := h.svc.Sync(r.Context(), identity, partyID, req.CurrentTime, req.IsPlaying)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, updated)

	case "end":
		updated, err := h.svc.End(r.Context(), identity, partyID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondData(w, http.StatusOK, updated)
	}
}

// JoinByCodeRequest admits a viewer via a share code.
type JoinByCodeRequest struct {
	Password string `json:"password" validate:"omitempty,max=256"`
}

// JoinPartyByCode handles POST /api/v1/parties/code/{code}/join, the
// invite-link entry point.
func (h *Handler) JoinPartyByCode(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}

	codeReq := shareCodeRequest{Code: chi.URLParam(r, "code")}
	if apiErr := validateRequest(&codeReq); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	var req JoinByCodeRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	updated, err := h.svc.Join(r.Context(), identity, party.Ref{ShareCode: codeReq.Code}, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

// EndParty handles POST /api/v1/parties/{id}/end. Host only; carries a
// stricter budget than general updates.
func (h *Handler) EndParty(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}

	updated, err := h.svc.End(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

// DeleteParty handles DELETE /api/v1/parties/{id}. Host only.
func (h *Handler) DeleteParty(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "authentication required", nil)
		return
	}

	if err := h.svc.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "Watch party deleted"})
}
