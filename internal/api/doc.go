// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package api provides the HTTP control plane using the Chi router.
//
// The control plane owns the authoritative party intents: create, join,
// leave, sync, end. The realtime endpoints (video sync, chat) republish
// onto the party channel after authorization. Every response uses the
// common envelope with a status, payload and error block; rate limits
// are enforced per authenticated identity with per-action budgets.
package api
