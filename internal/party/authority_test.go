// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package party

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

func newAuthorityBus(t *testing.T) *channel.Bus {
	t.Helper()

	bus, transport := channel.NewInProcess(config.ChannelConfig{
		OutputBuffer:    16,
		BreakerFailures: 5,
		BreakerCooldown: time.Second,
	})
	t.Cleanup(func() { _ = transport.Close() })
	return bus
}

// recordingWriter captures snapshot writes from the authority loop.
type recordingWriter struct {
	mu    sync.Mutex
	calls []models.PlaybackSnapshot
}

func (w *recordingWriter) Sync(ctx context.Context, identity models.Identity, partyID string, currentTime *float64, isPlaying *bool) (*models.Party, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := models.PlaybackSnapshot{}
	if currentTime != nil {
		snap.CurrentTime = *currentTime
	}
	if isPlaying != nil {
		snap.IsPlaying = *isPlaying
	}
	w.calls = append(w.calls, snap)
	return nil, nil
}

func (w *recordingWriter) snapshots() []models.PlaybackSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.PlaybackSnapshot, len(w.calls))
	copy(out, w.calls)
	return out
}

func testParty(host string) *models.Party {
	return &models.Party{
		ID:   "party-1",
		Host: host,
	}
}

func TestAuthorityHostOnly(t *testing.T) {
	bus := newAuthorityBus(t)
	authority := NewAuthority(testParty("host-1"), guestIdentity, bus, &recordingWriter{}, time.Second)
	ctx := context.Background()

	if err := authority.Play(ctx, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Play: expected ErrNotAuthorized, got %v", err)
	}
	if err := authority.Pause(ctx, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Pause: expected ErrNotAuthorized, got %v", err)
	}
	if err := authority.Seek(ctx, 10); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Seek: expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthorityTransitionsBroadcast(t *testing.T) {
	bus := newAuthorityBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "party-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	authority := NewAuthority(testParty(hostIdentity.ID), hostIdentity, bus, &recordingWriter{}, time.Second)

	steps := []struct {
		name       string
		run        func() error
		wantAction string
		wantTime   float64
		wantPlay   bool
	}{
		{"play", func() error { return authority.Play(ctx, 12) }, models.ActionPlay, 12, true},
		{"pause", func() error { return authority.Pause(ctx, 30) }, models.ActionPause, 30, false},
		{"seek while paused", func() error { return authority.Seek(ctx, 300) }, models.ActionSeek, 300, false},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			if err := step.run(); err != nil {
				t.Fatalf("Transition failed: %v", err)
			}

			ev := collectEvent(t, sub, models.EventVideoUpdate)
			var update models.VideoUpdate
			if err := ev.Decode(&update); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if update.Action != step.wantAction {
				t.Errorf("Expected action %q, got %q", step.wantAction, update.Action)
			}
			if update.CurrentTime != step.wantTime {
				t.Errorf("Expected position %f, got %f", step.wantTime, update.CurrentTime)
			}
			if update.IsPlaying != step.wantPlay {
				t.Errorf("Expected isPlaying=%v, got %v", step.wantPlay, update.IsPlaying)
			}
		})
	}
}

func TestAuthorityPositionAdvancesWhilePlaying(t *testing.T) {
	bus := newAuthorityBus(t)
	authority := NewAuthority(testParty(hostIdentity.ID), hostIdentity, bus, &recordingWriter{}, time.Second)
	ctx := context.Background()

	if err := authority.Pause(ctx, 100); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if got := authority.Position(); got != 100 {
		t.Errorf("Paused position = %f, want 100", got)
	}

	if err := authority.Play(ctx, 100); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	got := authority.Position()
	if got <= 100 {
		t.Errorf("Playing position did not advance: %f", got)
	}
	if got > 101 {
		t.Errorf("Playing position advanced implausibly: %f", got)
	}
	if !authority.IsPlaying() {
		t.Error("Expected IsPlaying=true after Play")
	}
}

func TestAuthoritySnapshotLoop(t *testing.T) {
	bus := newAuthorityBus(t)
	writer := &recordingWriter{}
	authority := NewAuthority(testParty(hostIdentity.ID), hostIdentity, bus, writer, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := authority.Play(ctx, 10); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- authority.Serve(ctx) }()

	time.Sleep(180 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop on cancel")
	}

	snaps := writer.snapshots()
	if len(snaps) < 2 {
		t.Fatalf("Expected at least 2 snapshot writes, got %d", len(snaps))
	}
	for i, snap := range snaps {
		if !snap.IsPlaying {
			t.Errorf("Snapshot %d not playing: %+v", i, snap)
		}
		if snap.CurrentTime < 10 {
			t.Errorf("Snapshot %d position regressed: %+v", i, snap)
		}
	}
	// Positions move forward across snapshots while playing.
	if snaps[len(snaps)-1].CurrentTime <= snaps[0].CurrentTime {
		t.Errorf("Snapshot positions did not advance: first %f, last %f",
			snaps[0].CurrentTime, snaps[len(snaps)-1].CurrentTime)
	}
}

func TestAuthorityNegativePositionsClamped(t *testing.T) {
	bus := newAuthorityBus(t)
	authority := NewAuthority(testParty(hostIdentity.ID), hostIdentity, bus, &recordingWriter{}, time.Second)
	ctx := context.Background()

	if err := authority.Seek(ctx, -5); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got := authority.Position(); got != 0 {
		t.Errorf("Expected clamp to 0, got %f", got)
	}
}
