// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cinesync/cinesync/internal/logging"
)

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=8,max=256"`
}

// GuestRequest names a viewer joining without an account.
type GuestRequest struct {
	Name string `json:"name" validate:"required,min=1,max=64"`
}

// TokenResponse returns a signed session token.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Login exchanges operator credentials for an admin token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if !h.credentials.Verify(req.Username, req.Password) {
		logging.Ctx(r.Context()).Warn().Str("username", sanitizeLogValue(req.Username)).Msg("login failed")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	userID := "operator:" + req.Username
	token, err := h.jwtManager.GenerateToken(userID, req.Username, "admin")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err)
		return
	}

	respondData(w, http.StatusOK, TokenResponse{
		Token:  token,
		UserID: userID,
		Name:   req.Username,
		Role:   "admin",
	})
}

// Guest issues a viewer token for a display name. Watch parties only
// need a stable identity relative to the host, so guests get a fresh
// user ID per session.
func (h *Handler) Guest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	userID := uuid.New().String()
	token, err := h.jwtManager.GenerateToken(userID, req.Name, "viewer")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err)
		return
	}

	respondData(w, http.StatusOK, TokenResponse{
		Token:  token,
		UserID: userID,
		Name:   req.Name,
		Role:   "viewer",
	})
}
