// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package models

// Identity is the narrow authenticated-caller value carried through every
// action call. It is validated once at the auth boundary and passed
// explicitly; nothing downstream re-inspects session state.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Valid reports whether the identity carries a usable caller ID.
func (i Identity) Valid() bool {
	return i.ID != ""
}
