// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package websocket delivers party channel events to browser clients.
//
// Each connected client belongs to exactly one party. The client bridges
// a party-scoped channel subscription onto its outbound queue, so a
// viewer only ever receives events for the party it joined. Inbound
// frames from the host (video updates) and from any participant (chat)
// are republished onto the party channel after the same authorization
// checks the HTTP API applies.
//
// The hub tracks connected clients for observability and shutdown. It is
// run under supervision; when its context is canceled every client's
// subscription is released and its connection closed, so no channel
// subscription outlives its websocket.
package websocket
