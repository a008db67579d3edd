// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package follower

// Player is the local playback surface the engine drives. Implementations
// wrap whatever actually renders video (an HTML5 element bridge, a test
// fake). Methods are called from the engine's run goroutine only.
type Player interface {
	// Position returns the current playback position in seconds.
	Position() float64

	// Seek moves playback to an absolute position in seconds.
	Seek(seconds float64)

	// Play starts or resumes playback.
	Play()

	// Pause halts playback, keeping the current position.
	Pause()

	// IsPlaying reports whether the player is currently playing.
	IsPlaying() bool
}
