// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package models

// Channel event names. One private channel exists per party; these are the
// event kinds fanned out to its subscribers. Delivery is at-least-once with
// best-effort ordering, so every playback event carries an absolute
// position (last-write-wins) rather than a delta.
const (
	EventVideoUpdate = "video-update"
	EventPartyUpdate = "party-update"
	EventPartyEnded  = "party-ended"
	EventChatMessage = "chat-message"
)

// Playback actions carried by a video-update event.
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

// Membership delta types carried by a party-update event.
const (
	PartyUpdateJoin  = "join"
	PartyUpdateLeave = "leave"
)

// VideoUpdate is a host-issued playback transition broadcast to followers.
type VideoUpdate struct {
	Action      string  `json:"action" validate:"required,oneof=play pause seek"`
	CurrentTime float64 `json:"currentTime" validate:"min=0"`
	IsPlaying   bool    `json:"isPlaying"`
}

// PartyUpdate is a membership-delta event carrying the refreshed
// participant set.
type PartyUpdate struct {
	Type         string   `json:"type"`
	UserID       string   `json:"userId"`
	Participants []string `json:"participants"`
}

// PartyEnded tells subscribers the host ended the party. Subscribers are
// expected to unsubscribe and navigate away within a short grace period.
type PartyEnded struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ChatUser is the sender attribution attached to a chat message.
type ChatUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatMessage is a fire-and-forget chat event. Messages are relayed over
// the channel only; no history is persisted.
type ChatMessage struct {
	Text string   `json:"text"`
	User ChatUser `json:"user"`
}
