// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

// Command server runs the watch party synchronization service: the HTTP
// control plane, the websocket fanout and the party event channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/cinesync/cinesync/internal/api"
	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/channel"
	"github.com/cinesync/cinesync/internal/config"
	"github.com/cinesync/cinesync/internal/logging"
	"github.com/cinesync/cinesync/internal/party"
	"github.com/cinesync/cinesync/internal/registry"
	ws "github.com/cinesync/cinesync/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("transport", cfg.Channel.Transport).
		Bool("registry_in_memory", cfg.Registry.InMemory).
		Msg("Starting Cinesync")

	store, err := registry.Open(cfg.Registry, cfg.Party.ShareCodeRetries)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open party registry")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing party registry")
		}
	}()

	bus, busCloser, err := openChannel(cfg.Channel)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event channel")
	}
	defer func() {
		if err := busCloser.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event channel")
		}
	}()

	svc := party.NewService(store, bus)
	hub := ws.NewHub()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	credentials, err := auth.NewCredentialStore(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential store")
	}

	handler := api.NewHandler(svc, bus, hub, jwtManager, credentials)
	router := api.NewRouter(handler, api.NewChiMiddleware(&cfg.Security), auth.NewMiddleware(jwtManager))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := suture.NewSimple("cinesync")
	root.Add(hub)
	root.Add(&httpService{server: server, shutdownTimeout: 10 * time.Second})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := root.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// openChannel builds the event channel for the configured transport.
func openChannel(cfg config.ChannelConfig) (*channel.Bus, io.Closer, error) {
	switch cfg.Transport {
	case "nats":
		bus, nats, err := channel.NewNATS(cfg)
		if err != nil {
			return nil, nil, err
		}
		return bus, nats, nil
	default:
		bus, inproc := channel.NewInProcess(cfg)
		return bus, inproc, nil
	}
}

// httpService runs the HTTP server under supervision with a bounded
// graceful shutdown.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (s *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown error")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *httpService) String() string { return "http-server" }
