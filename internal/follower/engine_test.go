// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package follower

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/config"
	"github.com/cinesync/cinesync/internal/models"
)

// fakePlayer records every command the engine issues.
type fakePlayer struct {
	mu       sync.Mutex
	position float64
	playing  bool
	seeks    []float64
	plays    int
	pauses   int
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
	p.seeks = append(p.seeks, seconds)
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.plays++
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.pauses++
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) seekCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seeks)
}

// staticSnapshots serves a fixed party record.
type staticSnapshots struct {
	mu    sync.Mutex
	party models.Party
	err   error
}

func (s *staticSnapshots) Get(ctx context.Context, partyID string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	party := s.party
	return &party, nil
}

// newBareEngine builds an engine without a live subscription for direct
// reconcile tests. now is replaced with a controllable clock.
func newBareEngine(player *fakePlayer, cfg Config) (*Engine, *time.Time) {
	cfg.applyDefaults()
	clock := time.Now()
	e := &Engine{
		partyID: "party-1",
		player:  player,
		cfg:     cfg,
	}
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestReconcilePlayDriftCorrection(t *testing.T) {
	tests := []struct {
		name      string
		playerPos float64
		hostPos   float64
		wantSeek  bool
	}{
		{"no drift", 100, 100, false},
		{"within tolerance", 100, 100.8, false},
		{"drift ahead of host", 102.5, 100, true},
		{"drift behind host", 100, 102.5, true},
		{"exactly at tolerance", 100, 101, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{position: tt.playerPos, playing: true}
			e, _ := newBareEngine(player, Config{DriftTolerance: time.Second})

			e.reconcile(models.ActionPlay, tt.hostPos)

			if tt.wantSeek {
				if player.seekCount() != 1 {
					t.Fatalf("Expected a corrective seek, got %d", player.seekCount())
				}
				if player.Position() != tt.hostPos {
					t.Errorf("Expected position %f, got %f", tt.hostPos, player.Position())
				}
			} else if player.seekCount() != 0 {
				t.Errorf("Unexpected seek for drift within tolerance")
			}
		})
	}
}

func TestReconcilePlayStartsPausedPlayer(t *testing.T) {
	player := &fakePlayer{position: 50, playing: false}
	e, _ := newBareEngine(player, Config{})

	e.reconcile(models.ActionPlay, 50.2)

	if !player.IsPlaying() {
		t.Error("Expected player to start playing")
	}
	if player.seekCount() != 0 {
		t.Error("Unexpected seek when drift is within tolerance")
	}
}

func TestReconcilePauseLeavesPositionAlone(t *testing.T) {
	// Pause stops the player where it stands; the event position is not
	// applied since no further drift accrues while paused.
	player := &fakePlayer{position: 10, playing: true}
	e, _ := newBareEngine(player, Config{})

	e.reconcile(models.ActionPause, 42)

	if player.IsPlaying() {
		t.Error("Expected player paused")
	}
	if player.Position() != 10 {
		t.Errorf("Pause snapped position 10 -> %f", player.Position())
	}
	if player.seekCount() != 0 {
		t.Errorf("Pause must not seek, got %d seeks", player.seekCount())
	}
}

func TestReconcileSeekAlwaysApplies(t *testing.T) {
	// Tolerance must not swallow small intentional seeks.
	player := &fakePlayer{position: 100, playing: true}
	e, _ := newBareEngine(player, Config{DriftTolerance: time.Second})

	e.reconcile(models.ActionSeek, 100.5)

	if player.Position() != 100.5 {
		t.Errorf("Expected position 100.5, got %f", player.Position())
	}
	if !player.IsPlaying() {
		t.Error("Seek must preserve the playing state")
	}
}

func TestReconcileSeekLeavesPlayStateAlone(t *testing.T) {
	// Hosts publish playing=false alongside seek events; the flag is not
	// authoritative for a seek and must not pause a playing follower.
	playing := &fakePlayer{position: 10, playing: true}
	e, _ := newBareEngine(playing, Config{})
	e.reconcile(models.ActionSeek, 20)
	if !playing.IsPlaying() {
		t.Error("Seek paused a playing player")
	}
	if playing.Position() != 20 {
		t.Errorf("Expected position 20, got %f", playing.Position())
	}

	paused := &fakePlayer{position: 10, playing: false}
	e, _ = newBareEngine(paused, Config{})
	e.reconcile(models.ActionSeek, 20)
	if paused.IsPlaying() {
		t.Error("Seek started a paused player")
	}
}

func TestInboundEventsNeverSuppressed(t *testing.T) {
	// A play immediately followed by a pause must leave the follower
	// paused: the syncing window never gates the inbound stream.
	player := &fakePlayer{position: 0, playing: false}
	e, _ := newBareEngine(player, Config{
		DriftTolerance: time.Second,
		SyncCooldown:   500 * time.Millisecond,
	})

	e.reconcile(models.ActionPlay, 100)
	if !player.IsPlaying() {
		t.Fatal("Expected player playing after play event")
	}

	e.reconcile(models.ActionPause, 101)
	if player.IsPlaying() {
		t.Error("Pause event dropped; follower kept playing")
	}

	e.reconcile(models.ActionSeek, 200)
	if player.Position() != 200 {
		t.Errorf("Seek event dropped; position %f, want 200", player.Position())
	}
}

func TestSyncingWindow(t *testing.T) {
	player := &fakePlayer{position: 0, playing: true}
	e, clock := newBareEngine(player, Config{
		DriftTolerance: time.Second,
		SyncCooldown:   500 * time.Millisecond,
	})

	if e.Syncing() {
		t.Error("Engine syncing before any correction")
	}

	e.reconcile(models.ActionSeek, 100)
	if !e.Syncing() {
		t.Error("Engine not syncing right after a correction")
	}

	*clock = clock.Add(600 * time.Millisecond)
	if e.Syncing() {
		t.Error("Engine still syncing after the window passed")
	}
}

func TestBootstrapHardSetsPlayer(t *testing.T) {
	player := &fakePlayer{position: 0, playing: false}
	snapshots := &staticSnapshots{party: models.Party{
		ID:          "party-1",
		CurrentTime: 431.5,
		IsPlaying:   true,
	}}

	e, _ := newBareEngine(player, Config{})
	e.snapshots = snapshots
	e.bootstrap(context.Background())

	if player.Position() != 431.5 {
		t.Errorf("Expected bootstrap position 431.5, got %f", player.Position())
	}
	if !player.IsPlaying() {
		t.Error("Expected player playing after bootstrap")
	}
}

func TestBootstrapFetchFailureLeavesPlayerAlone(t *testing.T) {
	player := &fakePlayer{position: 7, playing: false}
	snapshots := &staticSnapshots{err: errors.New("registry down")}

	e, _ := newBareEngine(player, Config{})
	e.snapshots = snapshots
	e.bootstrap(context.Background())

	if player.Position() != 7 || player.seekCount() != 0 {
		t.Errorf("Bootstrap failure mutated player: %+v", player)
	}
}

func newEngineBus(t *testing.T) *channel.Bus {
	t.Helper()

	bus, transport := channel.NewInProcess(config.ChannelConfig{
		OutputBuffer:    16,
		BreakerFailures: 5,
		BreakerCooldown: time.Second,
	})
	t.Cleanup(func() { _ = transport.Close() })
	return bus
}

func TestEngineFollowsHostEvents(t *testing.T) {
	bus := newEngineBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := &staticSnapshots{party: models.Party{ID: "party-1"}}
	player := &fakePlayer{}

	sub, err := bus.Subscribe(ctx, "party-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	engine := NewEngine("party-1", player, sub, snapshots, Config{
		DriftTolerance: time.Second,
		SyncCooldown:   time.Millisecond, // effectively off for this test
	})

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Give the engine a moment to bootstrap before publishing.
	time.Sleep(50 * time.Millisecond)

	if err := bus.Publish(ctx, "party-1", models.EventVideoUpdate, models.VideoUpdate{
		Action: models.ActionPlay, CurrentTime: 90, IsPlaying: true,
	}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool { return player.Position() == 90 && player.IsPlaying() },
		"player did not follow play event")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestEngineStopsOnPartyEnded(t *testing.T) {
	bus := newEngineBus(t)
	ctx := context.Background()

	snapshots := &staticSnapshots{party: models.Party{ID: "party-1", IsPlaying: true, CurrentTime: 10}}
	player := &fakePlayer{}

	sub, err := bus.Subscribe(ctx, "party-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	var endedMsg string
	var endedMu sync.Mutex
	engine := NewEngine("party-1", player, sub, snapshots, Config{
		EndGrace: 10 * time.Millisecond,
		OnEnded: func(message string) {
			endedMu.Lock()
			endedMsg = message
			endedMu.Unlock()
		},
	})

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if err := bus.Publish(ctx, "party-1", models.EventPartyEnded, models.PartyEnded{
		Message:   "The host has ended this watch party",
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after party end", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after party-ended")
	}

	endedMu.Lock()
	msg := endedMsg
	endedMu.Unlock()
	if msg != "The host has ended this watch party" {
		t.Errorf("Unexpected farewell: %q", msg)
	}
	if player.IsPlaying() {
		t.Error("Expected player paused after party end")
	}

	// The subscription must be released on exit.
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("Expected subscription closed after Run returned")
		}
	case <-time.After(time.Second):
		t.Error("Subscription not closed after Run returned")
	}
}

func TestEngineSnapshotPollCatchUp(t *testing.T) {
	bus := newEngineBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := &staticSnapshots{party: models.Party{ID: "party-1", CurrentTime: 0}}
	player := &fakePlayer{}

	sub, err := bus.Subscribe(ctx, "party-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	engine := NewEngine("party-1", player, sub, snapshots, Config{
		DriftTolerance:   time.Second,
		SyncCooldown:     time.Millisecond,
		SnapshotInterval: 30 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Advance the durable snapshot far beyond the player; the poll path
	// must catch the player up without any channel event.
	time.Sleep(20 * time.Millisecond)
	snapshots.mu.Lock()
	snapshots.party.CurrentTime = 500
	snapshots.party.IsPlaying = true
	snapshots.mu.Unlock()

	waitFor(t, func() bool { return player.Position() == 500 && player.IsPlaying() },
		"player did not catch up from snapshot poll")

	cancel()
	<-done
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
