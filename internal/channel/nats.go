// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

//go:build nats

package channel

import (
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/cinesync/cinesync/internal/config"
)

// NATS is the NATS-backed channel transport for multi-instance
// deployments, where party events must fan out across server processes.
// Core JetStream is deliberately not used: party events are ephemeral
// fire-and-forget traffic and the registry is the durable catch-up path.
type NATS struct {
	publisher  *wmNats.Publisher
	subscriber *wmNats.Subscriber
}

// NewNATS connects to the configured NATS server and returns a Bus over it.
func NewNATS(cfg config.ChannelConfig) (*Bus, *NATS, error) {
	logger := watermillLogger{}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
	}

	publisher, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	subscriber, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	transport := &NATS{publisher: publisher, subscriber: subscriber}
	return New(publisher, subscriber, cfg), transport, nil
}

// Close shuts both transport halves down.
func (t *NATS) Close() error {
	pubErr := t.publisher.Close()
	subErr := t.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
