// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package models

import (
	"time"
)

// Party is the aggregate root of a watch party: one host, a movie
// reference, a participant set, and the authoritative playback snapshot.
//
// Invariants maintained by the registry and the party service:
//   - Exactly one host, immutable for the life of the party.
//   - Participants is a set: no duplicates, order-irrelevant, host included.
//   - CurrentTime >= 0. Monotonic increase while playing is expected but
//     not enforced server-side (clock drift is tolerated, not corrected).
//   - A party with zero participants is ended (IsActive=false), recomputed
//     on every leave.
type Party struct {
	ID        string `json:"id"`
	ShareCode string `json:"shareCode"`
	Host      string `json:"host"`

	MovieID    string `json:"movieId"`
	MovieTitle string `json:"movieTitle"`
	PartyName  string `json:"partyName"`

	IsPrivate bool `json:"isPrivate"`
	// SecretHash is the bcrypt hash of the party secret. Present only when
	// IsPrivate; never serialized to clients.
	SecretHash []byte `json:"-"`

	Participants []string `json:"participants"`
	IsActive     bool     `json:"isActive"`

	// IsPlaying and CurrentTime form the authoritative playback snapshot.
	// Only the host mutates them, via explicit sync/seek/play/pause actions.
	IsPlaying   bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasParticipant reports whether the identity is a member of the party.
func (p *Party) HasParticipant(identityID string) bool {
	for _, id := range p.Participants {
		if id == identityID {
			return true
		}
	}
	return false
}

// AddParticipant adds the identity to the participant set.
// Returns false if the identity was already present (idempotent join).
func (p *Party) AddParticipant(identityID string) bool {
	if p.HasParticipant(identityID) {
		return false
	}
	p.Participants = append(p.Participants, identityID)
	return true
}

// RemoveParticipant removes the identity from the participant set and
// deactivates the party when the set becomes empty. Returns false if the
// identity was not a member.
func (p *Party) RemoveParticipant(identityID string) bool {
	for i, id := range p.Participants {
		if id == identityID {
			p.Participants = append(p.Participants[:i], p.Participants[i+1:]...)
			if len(p.Participants) == 0 {
				p.IsActive = false
			}
			return true
		}
	}
	return false
}

// PlaybackSnapshot is the durable (position, playing) pair the host
// persists to the registry so that late joiners and reconnecting
// followers can bootstrap without waiting for the next channel event.
type PlaybackSnapshot struct {
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
}

// Snapshot returns the party's authoritative playback snapshot.
func (p *Party) Snapshot() PlaybackSnapshot {
	return PlaybackSnapshot{CurrentTime: p.CurrentTime, IsPlaying: p.IsPlaying}
}
