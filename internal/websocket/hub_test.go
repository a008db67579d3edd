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

func testBus(t *testing.T) *channel.Bus {
	t.Helper()

	bus, transport := channel.NewInProcess(config.ChannelConfig{
		OutputBuffer:    16,
		BreakerFailures: 5,
		BreakerCooldown: time.Second,
	})
	t.Cleanup(func() { _ = transport.Close() })
	return bus
}

// newTestClient builds a client with a live subscription but no network
// connection. Pumps are never started, so conn stays unused.
func newTestClient(t *testing.T, hub *Hub, bus *channel.Bus, partyID string) *Client {
	t.Helper()

	sub, err := bus.Subscribe(context.Background(), partyID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	identity := models.Identity{ID: "user-" + partyID, Name: "Tester"}
	return NewClient(hub, nil, nil, sub, partyID, identity)
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Client count never reached %d, have %d", want, hub.GetClientCount())
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	bus := testBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	client := newTestClient(t, hub, bus, "party-1")
	hub.Register <- client
	waitForCount(t, hub, 1)

	hub.Unregister <- client
	waitForCount(t, hub, 0)

	// Unregister released the subscription and closed the send channel.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("Expected send channel closed, got a message")
		}
	case <-time.After(time.Second):
		t.Error("Send channel not closed after unregister")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Hub did not stop after cancel")
	}
}

func TestHubUnregisterUnknownClient(t *testing.T) {
	hub := NewHub()
	bus := testBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	// Unregistering a client that never registered must not panic or
	// disturb registered clients.
	stranger := newTestClient(t, hub, bus, "party-1")
	registered := newTestClient(t, hub, bus, "party-1")

	hub.Register <- registered
	waitForCount(t, hub, 1)

	hub.Unregister <- stranger
	time.Sleep(20 * time.Millisecond)

	if got := hub.GetClientCount(); got != 1 {
		t.Errorf("Expected 1 client, got %d", got)
	}
}

func TestHubCountForParty(t *testing.T) {
	hub := NewHub()
	bus := testBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	a1 := newTestClient(t, hub, bus, "party-a")
	a2 := newTestClient(t, hub, bus, "party-a")
	b1 := newTestClient(t, hub, bus, "party-b")

	hub.Register <- a1
	hub.Register <- a2
	hub.Register <- b1
	waitForCount(t, hub, 3)

	if got := hub.CountForParty("party-a"); got != 2 {
		t.Errorf("Expected 2 clients in party-a, got %d", got)
	}
	if got := hub.CountForParty("party-b"); got != 1 {
		t.Errorf("Expected 1 client in party-b, got %d", got)
	}
	if got := hub.CountForParty("party-c"); got != 0 {
		t.Errorf("Expected 0 clients in party-c, got %d", got)
	}

	hub.Unregister <- a1
	waitForCount(t, hub, 2)
	if got := hub.CountForParty("party-a"); got != 1 {
		t.Errorf("Expected 1 client in party-a after unregister, got %d", got)
	}
}

func TestHubShutdownClosesAllClients(t *testing.T) {
	hub := NewHub()
	bus := testBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	clients := []*Client{
		newTestClient(t, hub, bus, "party-1"),
		newTestClient(t, hub, bus, "party-2"),
		newTestClient(t, hub, bus, "party-3"),
	}
	for _, c := range clients {
		hub.Register <- c
	}
	waitForCount(t, hub, 3)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Hub did not stop after cancel")
	}

	if got := hub.GetClientCount(); got != 0 {
		t.Errorf("Expected 0 clients after shutdown, got %d", got)
	}
	for i, c := range clients {
		select {
		case _, ok := <-c.send:
			if ok {
				t.Errorf("Client %d: expected closed send channel", i)
			}
		case <-time.After(time.Second):
			t.Errorf("Client %d: send channel not closed", i)
		}
	}
}
