// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package party implements the watch-party sync core: membership and
// admission control, and the host playback authority.
//
// The service owns every control-plane action (create, join, leave, sync,
// end). It treats the registry as the single source of durable truth and
// the event channel as fire-and-forget fan-out; a channel failure never
// fails an action that already committed to the registry.
package party

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/models"
	"github.com/cinesync/cinesync/internal/registry"
)

// endedMessage is the human-readable reason broadcast with party-ended.
const endedMessage = "The host has ended this watch party"

// Service composes the party registry and the event channel into the
// membership/admission controller and the server side of playback sync.
type Service struct {
	registry *registry.Store
	bus      *channel.Bus
}

// NewService creates the party service.
func NewService(store *registry.Store, bus *channel.Bus) *Service {
	return &Service{registry: store, bus: bus}
}

// CreateInput carries the host-supplied creation parameters.
type CreateInput struct {
	MovieID    string
	MovieTitle string
	PartyName  string
	IsPrivate  bool
	Secret     string
}

// Create registers a new party with the caller as host and sole
// participant. Private parties require a secret, stored only as a bcrypt
// hash. Playback starts paused at position zero.
func (s *Service) Create(ctx context.Context, identity models.Identity, input CreateInput) (*models.Party, error) {
	if !identity.Valid() {
		return nil, ErrNotAuthorized
	}
	if input.MovieID == "" || input.MovieTitle == "" || input.PartyName == "" {
		return nil, ErrInvalidInput
	}
	if input.IsPrivate && input.Secret == "" {
		return nil, ErrInvalidInput
	}

	draft := registry.PartyDraft{
		Host:       identity.ID,
		MovieID:    input.MovieID,
		MovieTitle: input.MovieTitle,
		PartyName:  input.PartyName,
		IsPrivate:  input.IsPrivate,
	}
	if input.IsPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		draft.SecretHash = hash
	}

	party, err := s.registry.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("party_id", party.ID).
		Str("share_code", party.ShareCode).
		Str("host", identity.ID).
		Bool("private", party.IsPrivate).
		Msg("party created")
	return party, nil
}

// Ref identifies a party by id or share code; exactly one must be set.
type Ref struct {
	ID        string
	ShareCode string
}

// Resolve looks a party up by the reference. Ended parties resolve like
// missing ones for join purposes; callers that need the record regardless
// use Get.
func (s *Service) Resolve(ctx context.Context, ref Ref) (*models.Party, error) {
	if ref.ID != "" {
		return s.registry.GetByID(ctx, ref.ID)
	}
	if ref.ShareCode != "" {
		return s.registry.GetByShareCode(ctx, ref.ShareCode)
	}
	return nil, ErrNotFound
}

// Get returns the party by id. Used for snapshot bootstrap and listings.
func (s *Service) Get(ctx context.Context, id string) (*models.Party, error) {
	return s.registry.GetByID(ctx, id)
}

// GetByShareCode returns the party by its share code.
func (s *Service) GetByShareCode(ctx context.Context, code string) (*models.Party, error) {
	return s.registry.GetByShareCode(ctx, code)
}

// ListActive returns all active parties, newest first.
func (s *Service) ListActive(ctx context.Context) ([]*models.Party, error) {
	return s.registry.ListActive(ctx)
}

// Join admits the identity into the party. On a private party the secret
// must match or the join fails with ErrAdmissionDenied. Joining is
// idempotent: adding an existing member changes nothing and emits no
// event. On an actual change a party-update event carries the refreshed
// participant set.
func (s *Service) Join(ctx context.Context, identity models.Identity, ref Ref, secret string) (*models.Party, error) {
	if !identity.Valid() {
		return nil, ErrNotAuthorized
	}

	party, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !party.IsActive {
		return nil, ErrNotFound
	}

	if party.IsPrivate && !party.HasParticipant(identity.ID) {
		if bcrypt.CompareHashAndPassword(party.SecretHash, []byte(secret)) != nil {
			return nil, ErrAdmissionDenied
		}
	}

	changed := false
	updated, err := s.registry.Update(ctx, party.ID, func(p *models.Party) error {
		changed = p.AddParticipant(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, updated.ID, models.EventPartyUpdate, models.PartyUpdate{
			Type:         models.PartyUpdateJoin,
			UserID:       identity.ID,
			Participants: updated.Participants,
		})
		logging.Ctx(ctx).Info().
			Str("party_id", updated.ID).
			Str("user", identity.ID).
			Int("participants", len(updated.Participants)).
			Msg("participant joined")
	}
	return updated, nil
}

// Leave removes the identity from the participant set. When the set
// becomes empty the party is deactivated in the same update.
func (s *Service) Leave(ctx context.Context, identity models.Identity, partyID string) (*models.Party, error) {
	if !identity.Valid() {
		return nil, ErrNotAuthorized
	}

	removed := false
	updated, err := s.registry.Update(ctx, partyID, func(p *models.Party) error {
		removed = p.RemoveParticipant(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		s.publish(ctx, updated.ID, models.EventPartyUpdate, models.PartyUpdate{
			Type:         models.PartyUpdateLeave,
			UserID:       identity.ID,
			Participants: updated.Participants,
		})
		logging.Ctx(ctx).Info().
			Str("party_id", updated.ID).
			Str("user", identity.ID).
			Bool("active", updated.IsActive).
			Msg("participant left")
	}
	return updated, nil
}

// Sync updates the authoritative playback snapshot. Host-only; a non-host
// caller gets ErrNotAuthorized and the record is untouched. Fields are
// last-write-wins: concurrent syncs from multiple host devices resolve to
// whichever write lands last, an accepted limitation of the snapshot
// model.
func (s *Service) Sync(ctx context.Context, identity models.Identity, partyID string, currentTime *float64, isPlaying *bool) (*models.Party, error) {
	if currentTime != nil && *currentTime < 0 {
		return nil, ErrInvalidInput
	}

	return s.registry.Update(ctx, partyID, func(p *models.Party) error {
		if p.Host != identity.ID {
			return ErrNotAuthorized
		}
		if currentTime != nil {
			p.CurrentTime = *currentTime
		}
		if isPlaying != nil {
			p.IsPlaying = *isPlaying
		}
		return nil
	})
}

// End terminates the party. Host-only. Subscribers receive a party-ended
// event with a human-readable reason and are expected to unsubscribe
// within a bounded grace period.
func (s *Service) End(ctx context.Context, identity models.Identity, partyID string) (*models.Party, error) {
	updated, err := s.registry.Update(ctx, partyID, func(p *models.Party) error {
		if p.Host != identity.ID {
			return ErrNotAuthorized
		}
		p.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, partyID, models.EventPartyEnded, models.PartyEnded{
		Message:   endedMessage,
		Timestamp: time.Now().UnixMilli(),
	})
	logging.Ctx(ctx).Info().Str("party_id", partyID).Msg("party ended by host")
	return updated, nil
}

// Delete removes the party record entirely. Host-only, administrative.
func (s *Service) Delete(ctx context.Context, identity models.Identity, partyID string) error {
	party, err := s.registry.GetByID(ctx, partyID)
	if err != nil {
		return err
	}
	if party.Host != identity.ID {
		return ErrNotAuthorized
	}
	return s.registry.Delete(ctx, partyID)
}

// Authorize reports whether the identity may observe the party's channel.
// Channels are private per party: participants only.
func (s *Service) Authorize(ctx context.Context, identity models.Identity, partyID string) error {
	party, err := s.registry.GetByID(ctx, partyID)
	if err != nil {
		return err
	}
	if !party.HasParticipant(identity.ID) {
		return ErrNotAuthorized
	}
	return nil
}

// PublishVideoUpdate broadcasts a host playback transition on the party's
// channel. Host-only; followers never publish playback control events.
func (s *Service) PublishVideoUpdate(ctx context.Context, identity models.Identity, partyID string, update models.VideoUpdate) error {
	party, err := s.registry.GetByID(ctx, partyID)
	if err != nil {
		return err
	}
	if party.Host != identity.ID {
		return ErrNotAuthorized
	}
	return s.bus.Publish(ctx, partyID, models.EventVideoUpdate, update)
}

// PublishChat relays a chat message to the party's channel. Any
// participant may send; messages are not persisted.
func (s *Service) PublishChat(ctx context.Context, identity models.Identity, partyID, text string) error {
	if err := s.Authorize(ctx, identity, partyID); err != nil {
		return err
	}
	return s.bus.Publish(ctx, partyID, models.EventChatMessage, models.ChatMessage{
		Text: text,
		User: models.ChatUser{ID: identity.ID, Name: identity.Name},
	})
}

// publish is the absorbed fire-and-forget path for events that follow a
// committed registry update: a transport failure leaves followers one
// snapshot interval behind, it does not fail the action.
func (s *Service) publish(ctx context.Context, partyID, eventName string, payload interface{}) {
	if err := s.bus.Publish(ctx, partyID, eventName, payload); err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("party_id", partyID).
			Str("event", eventName).
			Msg("event fan-out skipped")
	}
}
