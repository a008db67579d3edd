// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package follower reconciles a local video player against the host's
// authoritative playback state.
//
// The engine consumes two update sources: low-latency video-update events
// from the party channel and periodic registry snapshots used for
// bootstrap and catch-up after missed events. Ordering between the
// sources does not matter: every update carries an absolute position and
// a later correct update repairs an earlier stale one.
//
// Reconciliation is deliberately asymmetric. Play updates snap the player
// only when drift exceeds a tolerance, because micro-corrections cause
// visible stutter. Pause updates pause in place without touching the
// position, since no further drift accrues while paused. Seek updates
// hard-set the position and leave the play/pause mode alone. Inbound
// updates are always applied; after each correction the engine marks
// itself syncing for a short window so player adapters know not to treat
// the forced change as user intent.
package follower
