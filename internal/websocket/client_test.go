// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/config"
	"github.com/cinesync/cinesync/internal/models"
)

// TestReleaseWhileBridgeDraining releases a client while its bridge pump
// is still draining a loaded subscription. The drain must complete
// without touching the closed send queue.
func TestReleaseWhileBridgeDraining(t *testing.T) {
	bus, transport := channel.NewInProcess(config.ChannelConfig{
		OutputBuffer:    2048,
		BreakerFailures: 5,
		BreakerCooldown: time.Second,
	})
	t.Cleanup(func() { _ = transport.Close() })

	sub, err := bus.Subscribe(context.Background(), "party-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	client := NewClient(NewHub(), nil, nil, sub, "party-1", models.Identity{ID: "user-1", Name: "Tester"})

	done := make(chan struct{})
	go func() {
		client.bridgePump()
		close(done)
	}()

	// Keep the bridge busy with a steady event stream, then release
	// mid-drain. Buffered events keep arriving after the queue closes.
	for i := 0; i < 1000; i++ {
		if err := bus.Publish(context.Background(), "party-1", models.EventVideoUpdate, models.VideoUpdate{
			Action: models.ActionSeek, CurrentTime: float64(i),
		}); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
		if i == 500 {
			client.release()
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Bridge pump did not finish draining after release")
	}
}

func TestEnqueueAfterRelease(t *testing.T) {
	bus, transport := channel.NewInProcess(config.ChannelConfig{
		OutputBuffer:    16,
		BreakerFailures: 5,
		BreakerCooldown: time.Second,
	})
	t.Cleanup(func() { _ = transport.Close() })

	sub, err := bus.Subscribe(context.Background(), "party-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	client := NewClient(NewHub(), nil, nil, sub, "party-1", models.Identity{ID: "user-1", Name: "Tester"})

	if !client.enqueue(Message{Event: MessageTypePong}) {
		t.Error("Expected enqueue to succeed before release")
	}

	client.release()

	// Pong replies and late bridge events must drop, not panic.
	if client.enqueue(Message{Event: MessageTypePong}) {
		t.Error("Expected enqueue to report false after release")
	}

	client.release() // idempotent
}
