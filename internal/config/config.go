// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Package config provides layered configuration for Cinesync using Koanf v2.
//
// Precedence (highest wins): environment variables > config file > defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Cinesync server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Registry RegistryConfig `koanf:"registry"`
	Channel  ChannelConfig  `koanf:"channel"`
	Party    PartyConfig    `koanf:"party"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// RateBudget is a per-identity request budget for one action class.
type RateBudget struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// SecurityConfig holds authentication and rate-limit settings.
//
// The per-action budgets mirror the control-plane policy: create is
// throttled more strictly than join/leave, and the realtime publish
// endpoints (video sync, chat) have their own budgets.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`

	RateLimitDisabled bool       `koanf:"rate_limit_disabled"`
	CreateParty       RateBudget `koanf:"create_party"`
	UpdateParty       RateBudget `koanf:"update_party"`
	VideoSync         RateBudget `koanf:"video_sync"`
	PartyEnd          RateBudget `koanf:"party_end"`
	ChatMessage       RateBudget `koanf:"chat_message"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// RegistryConfig holds party registry (BadgerDB) settings.
type RegistryConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string `koanf:"path"`
	// InMemory runs the registry without disk persistence. Used in tests
	// and for ephemeral deployments.
	InMemory bool `koanf:"in_memory"`
}

// ChannelConfig holds event channel transport settings.
type ChannelConfig struct {
	// Transport selects the pub/sub backend: "gochannel" (in-process,
	// default) or "nats" (requires the nats build tag).
	Transport string `koanf:"transport"`
	// URL is the NATS server URL when Transport is "nats".
	URL string `koanf:"url"`
	// OutputBuffer is the per-subscriber buffered event count.
	OutputBuffer int `koanf:"output_buffer"`

	// BreakerFailures is the consecutive publish-failure count that opens
	// the circuit; while open, publishes fail fast with ErrChannelUnavailable.
	BreakerFailures uint32 `koanf:"breaker_failures"`
	// BreakerCooldown is how long the circuit stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// PartyConfig holds sync-core tuning knobs.
type PartyConfig struct {
	// SnapshotInterval is how often the host authority persists the
	// playback snapshot to the registry (write-behind durable path).
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`
	// DriftTolerance is the follower drift threshold beyond which a play
	// event hard-sets the local position.
	DriftTolerance time.Duration `koanf:"drift_tolerance"`
	// SyncCooldown is the follower "syncing" window during which local
	// player observations are not fed back into any outbound path.
	SyncCooldown time.Duration `koanf:"sync_cooldown"`
	// EndGrace is how long followers may show the party-ended notice
	// before they must be unsubscribed.
	EndGrace time.Duration `koanf:"end_grace"`
	// ShareCodeRetries bounds the generate-and-check-again loop on
	// share-code collision.
	ShareCodeRetries int `koanf:"share_code_retries"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. The sync-core
// defaults (5s snapshot, 1s tolerance, 500ms cooldown) are the reference
// values the follower experience was tuned against.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8330,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			RateLimitDisabled: false,
			CreateParty:       RateBudget{Requests: 5, Window: 5 * time.Minute},
			UpdateParty:       RateBudget{Requests: 20, Window: time.Minute},
			VideoSync:         RateBudget{Requests: 30, Window: time.Minute},
			PartyEnd:          RateBudget{Requests: 3, Window: time.Minute},
			ChatMessage:       RateBudget{Requests: 10, Window: time.Minute},
			CORSOrigins:       []string{},
		},
		Registry: RegistryConfig{
			Path:     "/data/cinesync/registry",
			InMemory: false,
		},
		Channel: ChannelConfig{
			Transport:       "gochannel",
			URL:             "nats://127.0.0.1:4222",
			OutputBuffer:    256,
			BreakerFailures: 5,
			BreakerCooldown: 15 * time.Second,
		},
		Party: PartyConfig{
			SnapshotInterval: 5 * time.Second,
			DriftTolerance:   time.Second,
			SyncCooldown:     500 * time.Millisecond,
			EndGrace:         3 * time.Second,
			ShareCodeRetries: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Server.Environment == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required in production")
	}
	switch c.Channel.Transport {
	case "gochannel", "nats":
	default:
		return fmt.Errorf("channel.transport must be gochannel or nats, got %q", c.Channel.Transport)
	}
	if c.Party.SnapshotInterval <= 0 {
		return fmt.Errorf("party.snapshot_interval must be positive")
	}
	if c.Party.DriftTolerance < 0 {
		return fmt.Errorf("party.drift_tolerance must not be negative")
	}
	if c.Party.ShareCodeRetries < 1 {
		return fmt.Errorf("party.share_code_retries must be at least 1")
	}
	if !c.Registry.InMemory && c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required when registry.in_memory is false")
	}
	return nil
}
