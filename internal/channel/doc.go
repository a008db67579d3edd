// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package channel implements the per-party event channel on Watermill.
//
// One topic exists per party ("party.<id>"). Publishing is fire-and-forget:
// delivery is at-least-once with no ordering guarantee across publishers,
// which the sync core tolerates by making every playback event carry an
// absolute position. Nothing in this package (or its callers) assumes a
// delivery confirmation.
//
// The default transport is Watermill's in-process gochannel Pub/Sub.
// A NATS JetStream transport is available behind the "nats" build tag:
//
//	go build -tags "nats" ./cmd/server
//
// Publishes run through a circuit breaker. When the transport is failing,
// callers get ErrChannelUnavailable quickly and degrade to stale state:
// the host keeps playing locally, and followers catch up from the next
// registry snapshot.
//
// Subscriptions are scoped resources: Subscribe returns a handle whose
// Close is idempotent and must run on every exit path (navigation, error,
// party-ended). There is no ambient module-level connection state.
package channel
