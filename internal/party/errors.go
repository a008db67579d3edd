// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package party

import (
	"errors"

	"github.com/cinesync/cinesync/internal/registry"
)

// Error taxonomy for party actions. Admission and authorization errors
// are terminal for the attempted action and surfaced to the caller;
// transport failures (channel.ErrChannelUnavailable) are absorbed and
// degrade to stale state instead.
var (
	// ErrNotAuthorized indicates a non-host attempted a host-only action.
	// The action produces no state change and no channel traffic.
	ErrNotAuthorized = errors.New("not authorized: host-only action")

	// ErrAdmissionDenied indicates a wrong or missing secret on a private
	// party. The caller stays on a re-entry prompt rather than being
	// ejected.
	ErrAdmissionDenied = errors.New("admission denied: incorrect password")

	// ErrNotFound indicates the party id or share code is unresolvable,
	// including parties that have already ended.
	ErrNotFound = registry.ErrNotFound

	// ErrInvalidInput indicates a missing required creation field.
	ErrInvalidInput = errors.New("invalid party input")
)
