// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package follower

import (
	"context"
	"time"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/models"
)

// SnapshotSource fetches the durable party record for bootstrap and
// catch-up. The party Service satisfies it directly; a remote client
// satisfies it over HTTP.
type SnapshotSource interface {
	Get(ctx context.Context, partyID string) (*models.Party, error)
}

// Config tunes the reconciliation engine. Zero values fall back to the
// defaults the host side uses.
type Config struct {
	// DriftTolerance is the maximum position divergence, while playing,
	// that is left uncorrected.
	DriftTolerance time.Duration

	// SyncCooldown is how long the engine reports itself as syncing after
	// applying a correction. Player adapters consult Syncing to keep
	// locally-observed position changes out of any outbound path while a
	// forced correction settles; inbound authoritative events are never
	// suppressed.
	SyncCooldown time.Duration

	// SnapshotInterval is how often the durable snapshot is polled as a
	// catch-up source. Zero disables polling after bootstrap.
	SnapshotInterval time.Duration

	// EndGrace is how long the engine lingers after a party-ended event
	// before detaching, so the UI can surface the message.
	EndGrace time.Duration

	// OnEnded, if set, is invoked once with the host's farewell message
	// when the party ends.
	OnEnded func(message string)
}

func (c *Config) applyDefaults() {
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = time.Second
	}
	if c.SyncCooldown <= 0 {
		c.SyncCooldown = 500 * time.Millisecond
	}
	if c.EndGrace < 0 {
		c.EndGrace = 0
	}
}

// Engine drives one local player toward the host's authoritative state.
// Run owns the player for its lifetime; nothing else should call the
// player concurrently.
type Engine struct {
	partyID   string
	player    Player
	sub       *channel.Subscription
	snapshots SnapshotSource
	cfg       Config

	lastCorrection time.Time
	now            func() time.Time
}

// NewEngine creates a reconciliation engine for one party membership. The
// subscription must be scoped to the same party; Run closes it on exit.
func NewEngine(partyID string, player Player, sub *channel.Subscription, snapshots SnapshotSource, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		partyID:   partyID,
		player:    player,
		sub:       sub,
		snapshots: snapshots,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run bootstraps from the durable snapshot, then reconciles channel
// events and periodic snapshot polls until the context is canceled or the
// party ends. The subscription is closed on every exit path.
func (e *Engine) Run(ctx context.Context) error {
	defer e.sub.Close()

	e.bootstrap(ctx)

	var poll <-chan time.Time
	if e.cfg.SnapshotInterval > 0 {
		ticker := time.NewTicker(e.cfg.SnapshotInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-e.sub.Events():
			if !ok {
				return nil
			}
			if e.handleEvent(ctx, ev) {
				return nil
			}

		case <-poll:
			e.reconcileSnapshot(ctx)
		}
	}
}

// bootstrap hard-sets the player from the durable snapshot so a late
// joiner lands at the party's current position instead of zero. Tolerance
// does not apply here.
func (e *Engine) bootstrap(ctx context.Context) {
	party, err := e.snapshots.Get(ctx, e.partyID)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("party_id", e.partyID).
			Msg("bootstrap snapshot fetch failed")
		return
	}

	e.player.Seek(party.CurrentTime)
	if party.IsPlaying {
		e.player.Play()
	} else {
		e.player.Pause()
	}
	e.lastCorrection = e.now()
}

// handleEvent reconciles one channel event. It reports true when the
// party has ended and the engine should detach.
func (e *Engine) handleEvent(ctx context.Context, ev channel.Event) bool {
	switch ev.Name {
	case models.EventVideoUpdate:
		var update models.VideoUpdate
		if err := ev.Decode(&update); err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("party_id", e.partyID).
				Msg("malformed video update dropped")
			return false
		}
		e.reconcile(update.Action, update.CurrentTime)

	case models.EventPartyEnded:
		var ended models.PartyEnded
		if err := ev.Decode(&ended); err == nil && e.cfg.OnEnded != nil {
			e.cfg.OnEnded(ended.Message)
		}
		e.player.Pause()
		if e.cfg.EndGrace > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.EndGrace):
			}
		}
		return true
	}
	return false
}

// reconcileSnapshot applies the durable record as a catch-up source:
// drift-gated position correction plus matching the play/pause mode.
// Stale snapshots are harmless: the channel event that superseded them
// carried an absolute position too.
func (e *Engine) reconcileSnapshot(ctx context.Context) {
	party, err := e.snapshots.Get(ctx, e.partyID)
	if err != nil {
		logging.Ctx(ctx).Debug().
			Err(err).
			Str("party_id", e.partyID).
			Msg("snapshot poll failed")
		return
	}

	if e.drift(party.CurrentTime) > e.cfg.DriftTolerance.Seconds() {
		e.player.Seek(party.CurrentTime)
		e.lastCorrection = e.now()
	}
	if party.IsPlaying && !e.player.IsPlaying() {
		e.player.Play()
		e.lastCorrection = e.now()
	} else if !party.IsPlaying && e.player.IsPlaying() {
		e.player.Pause()
		e.lastCorrection = e.now()
	}
}

// reconcile applies one authoritative update to the player. Updates are
// never suppressed: the syncing window only marks the aftermath of a
// correction for Syncing callers, it does not gate the inbound stream.
//
// The asymmetry per action:
//   - play corrects position only beyond the drift tolerance, then plays;
//   - pause pauses where the player stands, no position snap;
//   - seek hard-sets the position and leaves the play/pause mode alone
//     (the event's playing flag is not authoritative for seek).
func (e *Engine) reconcile(action string, position float64) {
	switch action {
	case models.ActionPlay:
		corrected := false
		if e.drift(position) > e.cfg.DriftTolerance.Seconds() {
			e.player.Seek(position)
			corrected = true
		}
		if !e.player.IsPlaying() {
			e.player.Play()
			corrected = true
		}
		if corrected {
			e.lastCorrection = e.now()
		}

	case models.ActionPause:
		e.player.Pause()
		e.lastCorrection = e.now()

	case models.ActionSeek:
		e.player.Seek(position)
		e.lastCorrection = e.now()
	}
}

// Syncing reports whether a correction was applied within the cool-down
// window. Player adapters check it before treating local player events
// (time updates, user gestures) as user intent to publish anywhere.
func (e *Engine) Syncing() bool {
	if e.lastCorrection.IsZero() {
		return false
	}
	return e.now().Sub(e.lastCorrection) < e.cfg.SyncCooldown
}

func (e *Engine) drift(authoritative float64) float64 {
	d := authoritative - e.player.Position()
	if d < 0 {
		d = -d
	}
	return d
}
