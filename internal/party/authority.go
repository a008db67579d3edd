// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package party

import (
	"context"
	"sync"
	"time"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/models"
)

// SnapshotWriter persists the authoritative playback snapshot. The party
// Service satisfies it directly; a remote client satisfies it over HTTP.
type SnapshotWriter interface {
	Sync(ctx context.Context, identity models.Identity, partyID string, currentTime *float64, isPlaying *bool) (*models.Party, error)
}

// Authority is the host-side playback state machine. It owns what
// "current time / playing-or-paused" means for the party: discrete
// transitions (play, pause, seek) publish absolute-position events on the
// low-latency channel, and a background loop periodically persists the
// snapshot to the registry so late joiners bootstrap without waiting for
// the next event (write-behind).
//
// State is either Paused(position) or Playing(position, startedAt); while
// playing, the current position is derived from the wall clock.
type Authority struct {
	partyID  string
	hostID   string
	identity models.Identity

	bus      *channel.Bus
	writer   SnapshotWriter
	interval time.Duration

	mu        sync.Mutex
	playing   bool
	position  float64
	startedAt time.Time
}

// NewAuthority creates the playback authority for one party. The identity
// is the local caller; transitions are rejected with ErrNotAuthorized
// unless it is the party host.
func NewAuthority(party *models.Party, identity models.Identity, bus *channel.Bus, writer SnapshotWriter, snapshotInterval time.Duration) *Authority {
	if snapshotInterval <= 0 {
		snapshotInterval = 5 * time.Second
	}
	a := &Authority{
		partyID:  party.ID,
		hostID:   party.Host,
		identity: identity,
		bus:      bus,
		writer:   writer,
		interval: snapshotInterval,
		playing:  party.IsPlaying,
		position: party.CurrentTime,
	}
	if a.playing {
		a.startedAt = time.Now()
	}
	return a
}

// Position returns the current derived playback position in seconds.
func (a *Authority) Position() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionLocked(time.Now())
}

// IsPlaying reports the current play/pause mode.
func (a *Authority) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *Authority) positionLocked(now time.Time) float64 {
	if !a.playing {
		return a.position
	}
	return a.position + now.Sub(a.startedAt).Seconds()
}

// Play transitions Paused -> Playing from the given position and
// broadcasts the transition. Host-only.
func (a *Authority) Play(ctx context.Context, from float64) error {
	if err := a.requireHost(); err != nil {
		return err
	}
	if from < 0 {
		from = 0
	}

	a.mu.Lock()
	a.playing = true
	a.position = from
	a.startedAt = time.Now()
	a.mu.Unlock()

	a.broadcast(ctx, models.VideoUpdate{
		Action:      models.ActionPlay,
		CurrentTime: from,
		IsPlaying:   true,
	})
	return nil
}

// Pause transitions Playing -> Paused at the given position and
// broadcasts the transition. Host-only.
func (a *Authority) Pause(ctx context.Context, at float64) error {
	if err := a.requireHost(); err != nil {
		return err
	}
	if at < 0 {
		at = 0
	}

	a.mu.Lock()
	a.playing = false
	a.position = at
	a.mu.Unlock()

	a.broadcast(ctx, models.VideoUpdate{
		Action:      models.ActionPause,
		CurrentTime: at,
		IsPlaying:   false,
	})
	return nil
}

// Seek resets the position without changing play/pause mode and
// broadcasts the absolute target. Host-only.
func (a *Authority) Seek(ctx context.Context, to float64) error {
	if err := a.requireHost(); err != nil {
		return err
	}
	if to < 0 {
		to = 0
	}

	a.mu.Lock()
	a.position = to
	if a.playing {
		a.startedAt = time.Now()
	}
	playing := a.playing
	a.mu.Unlock()

	a.broadcast(ctx, models.VideoUpdate{
		Action:      models.ActionSeek,
		CurrentTime: to,
		IsPlaying:   playing,
	})
	return nil
}

// requireHost rejects transitions from non-host identities before any
// state change or channel traffic happens.
func (a *Authority) requireHost() error {
	if a.identity.ID != a.hostID {
		return ErrNotAuthorized
	}
	return nil
}

// broadcast publishes a video-update, absorbing transport failures: the
// host keeps playing locally and followers catch up from the next event
// or snapshot.
func (a *Authority) broadcast(ctx context.Context, update models.VideoUpdate) {
	if err := a.bus.Publish(ctx, a.partyID, models.EventVideoUpdate, update); err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("party_id", a.partyID).
			Str("action", update.Action).
			Msg("video update broadcast failed")
	}
}

// Serve runs the periodic snapshot loop until the context is canceled.
// It implements suture.Service so the loop can run supervised. Snapshot
// write failures are logged and absorbed; the next tick retries.
//
// Returning the context error on cancellation is the normal-termination
// signal: the supervisor owns the context, so once it is canceled the
// service is shutting down with the tree and is not restarted.
func (a *Authority) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.persistSnapshot(ctx)
		}
	}
}

// persistSnapshot writes the current (position, playing) pair through the
// snapshot writer.
func (a *Authority) persistSnapshot(ctx context.Context) {
	a.mu.Lock()
	position := a.positionLocked(time.Now())
	playing := a.playing
	a.mu.Unlock()

	if _, err := a.writer.Sync(ctx, a.identity, a.partyID, &position, &playing); err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("party_id", a.partyID).
			Msg("snapshot persist failed")
	}
}
