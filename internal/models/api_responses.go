// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints, for both success and error payloads.
//
// Status field values:
//   - "success": Request completed, see Data field
//   - "error": Request failed, see Error field for details
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "ADMISSION_DENIED",
//	    "message": "Incorrect password"
//	  },
//	  "metadata": {"timestamp": "2026-08-30T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries structured error details.
//
// Error codes used by the party control plane:
//   - VALIDATION_ERROR: Invalid input parameters
//   - AUTHENTICATION_ERROR: Invalid/missing credentials
//   - AUTHORIZATION_ERROR: Non-host attempting a host-only action
//   - ADMISSION_DENIED: Wrong or missing secret on a private party
//   - NOT_FOUND: Party id/share code unresolvable (including ended parties)
//   - RATE_LIMIT_EXCEEDED: Caller exceeded the action budget
//   - CHANNEL_UNAVAILABLE: Event transport failure (degraded, not fatal)
type APIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
}
