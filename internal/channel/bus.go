// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/cinesync/cinesync/internal/config"
	"github.com/cinesync/cinesync/internal/logging"
)

// ErrChannelUnavailable indicates a transport-level failure to publish or
// subscribe. Callers absorb it and fall back to registry state.
var ErrChannelUnavailable = errors.New("event channel unavailable")

// eventNameMetadata is the message metadata key carrying the event name.
const eventNameMetadata = "event"

// Event is one decoded channel event as seen by a subscriber.
type Event struct {
	PartyID string
	Name    string
	Payload json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// PartyTopic returns the private per-party topic name.
func PartyTopic(partyID string) string {
	return "party." + partyID
}

// Bus is the party event channel: a Watermill publisher/subscriber pair
// with a circuit breaker on the publish path.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[interface{}]
	buffer     int
}

// New creates a Bus over the given Watermill publisher and subscriber.
func New(publisher message.Publisher, subscriber message.Subscriber, cfg config.ChannelConfig) *Bus {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    "event-channel-publish",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event channel breaker state changed")
		},
	})

	buffer := cfg.OutputBuffer
	if buffer <= 0 {
		buffer = 256
	}

	return &Bus{
		publisher:  publisher,
		subscriber: subscriber,
		breaker:    breaker,
		buffer:     buffer,
	}
}

// Publish sends one event to the party's topic, fire-and-forget. A failing
// transport opens the breaker and subsequent publishes fail fast; both
// cases surface as ErrChannelUnavailable.
func (b *Bus) Publish(ctx context.Context, partyID, eventName string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventName, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(eventNameMetadata, eventName)
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.publisher.Publish(PartyTopic(partyID), msg)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("party_id", partyID).
			Str("event", eventName).
			Msg("event publish failed")
		return fmt.Errorf("%w: %s", ErrChannelUnavailable, err)
	}
	return nil
}

// Subscription is a scoped handle on one party's event stream. Close is
// idempotent and must be called on every exit path.
type Subscription struct {
	partyID string
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
}

// Subscribe attaches to the party's topic and starts delivering decoded
// events. The subscription lives until Close is called or the passed
// context is canceled.
func (b *Bus) Subscribe(ctx context.Context, partyID string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	messages, err := b.subscriber.Subscribe(subCtx, PartyTopic(partyID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrChannelUnavailable, err)
	}

	sub := &Subscription{
		partyID: partyID,
		events:  make(chan Event, b.buffer),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.pump(messages)
	return sub, nil
}

// pump decodes raw messages into events until the transport channel closes.
func (s *Subscription) pump(messages <-chan *message.Message) {
	defer close(s.events)
	defer close(s.done)

	for msg := range messages {
		event := Event{
			PartyID: s.partyID,
			Name:    msg.Metadata.Get(eventNameMetadata),
			Payload: json.RawMessage(msg.Payload),
		}

		select {
		case s.events <- event:
		default:
			// Slow consumer: drop rather than block the transport. The
			// next absolute-position event or registry snapshot catches
			// the consumer up.
			logging.Warn().
				Str("party_id", s.partyID).
				Str("event", event.Name).
				Msg("subscriber queue full, dropping event")
		}
		msg.Ack()
	}
}

// Events returns the decoded event stream. The channel closes when the
// subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// PartyID returns the party this subscription is bound to.
func (s *Subscription) PartyID() string {
	return s.partyID
}

// Close detaches from the topic. Safe to call multiple times; returns
// after the event stream has drained and closed.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}
