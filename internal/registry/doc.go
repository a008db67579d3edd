// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package registry implements the durable party registry on BadgerDB.
//
// The registry is the single shared mutable resource of the sync core: it
// stores one record per party and is the durable catch-up path for late
// joiners and reconnecting followers (the event channel is the low-latency
// path). All mutations are single-record atomic read-modify-write
// transactions; no multi-record guarantees are assumed anywhere.
//
// Keyspace:
//
//	party:<id>        -> JSON-encoded models.Party
//	code:<shareCode>  -> party id (share-code index, uniqueness backstop)
//
// Share codes are generated at creation time with a
// generate-and-check-again loop; the code index entry written in the same
// transaction as the party record acts as the uniqueness backstop, so a
// race between two creators cannot commit the same code twice.
package registry
