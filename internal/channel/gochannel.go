// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package channel

import (
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/cinesync/cinesync/internal/config"
)

// InProcess is the default in-process transport: Watermill's gochannel
// Pub/Sub, one fan-out per topic to all current subscribers. Messages
// published with no subscriber are dropped, matching the fire-and-forget
// channel contract.
type InProcess struct {
	pubSub *gochannel.GoChannel
}

// NewInProcess creates the gochannel transport and a Bus over it.
func NewInProcess(cfg config.ChannelConfig) (*Bus, *InProcess) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.OutputBuffer),
	}, watermillLogger{})

	return New(pubSub, pubSub, cfg), &InProcess{pubSub: pubSub}
}

// Close shuts the transport down; open subscriptions drain and close.
func (t *InProcess) Close() error {
	return t.pubSub.Close()
}
