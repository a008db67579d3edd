// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package auth provides stateless JWT authentication for the HTTP API.
//
// Viewers exchange credentials for an HS256-signed token carrying a user
// ID, display name and role. The Authenticate middleware validates the
// token on every request and places the resulting identity in the request
// context, where handlers and the party service read it for host and
// membership checks.
package auth
