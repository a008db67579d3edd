// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/models"
	"github.com/cinesync/cinesync/internal/party"
	"github.com/cinesync/cinesync/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent
// log injection through attacker-controlled error text.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData wraps a payload in the success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondServiceError maps party service errors onto HTTP statuses and
// stable error codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, party.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Watch party not found", nil)
	case errors.Is(err, party.ErrAdmissionDenied):
		respondError(w, http.StatusForbidden, "ADMISSION_DENIED", "Incorrect password", nil)
	case errors.Is(err, party.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "You are not authorized to perform this action", nil)
	case errors.Is(err, party.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, channel.ErrChannelUnavailable):
		respondError(w, http.StatusServiceUnavailable, "CHANNEL_UNAVAILABLE", "Event channel temporarily unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// decodeJSON decodes a request body into a struct, rejecting unknown
// payload shapes with a validation error.
func decodeJSON(r *http.Request, v interface{}) *models.APIError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
		}
	}
	return nil
}

// validateRequest validates a struct using go-playground/validator and
// converts failures into the common error shape.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
