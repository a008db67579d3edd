// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

//go:build !nats

package channel

import (
	"fmt"

	"github.com/cinesync/cinesync/internal/config"
)

// NATS is a stub when the nats build tag is not set.
// Build with -tags=nats to enable the NATS transport.
type NATS struct{}

// NewNATS returns an error when built without the nats tag.
func NewNATS(cfg config.ChannelConfig) (*Bus, *NATS, error) {
	return nil, nil, fmt.Errorf("NATS transport not available: build with -tags=nats")
}

// Close is a no-op on the stub.
func (t *NATS) Close() error {
	return nil
}
