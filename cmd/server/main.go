// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package main is the entry point for the Airwave server.
//
// Airwave ingests radio network events (calls, affiliations,
// registrations) into an append-only NATS JetStream log, watches the
// log as a resilient change feed, enriches events with file-backed
// talkgroup and system-alias registries, and fans them out to
// websocket subscribers. An HTTP API serves the registries, bounded
// history queries, and the ingest endpoint.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, env)
//  2. Event log: embedded NATS server (optional), bounded connect,
//     stream provisioning
//  3. Registries: talkgroups and system aliases loaded from CSV
//  4. Supervisor tree: registry watchers/saver, websocket hub,
//     change-feed consumer, HTTP server
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor drains
// each layer within its shutdown timeout; the talkgroup saver flushes
// dirty partitions on the way out, before the process closes its
// event log connections.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/airwave/internal/api"
	"github.com/tomtom215/airwave/internal/config"
	"github.com/tomtom215/airwave/internal/consumer"
	"github.com/tomtom215/airwave/internal/dedup"
	"github.com/tomtom215/airwave/internal/eventlog"
	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/supervisor"
	"github.com/tomtom215/airwave/internal/sysalias"
	"github.com/tomtom215/airwave/internal/talkgroups"
	ws "github.com/tomtom215/airwave/internal/websocket"
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
		Str("version", cfg.Server.Version).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Str("talkgroups_dir", cfg.Data.TalkgroupsDir).
		Msg("Starting Airwave")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event log: embedded server first so there is something to
	// connect to.
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		embedded, err := eventlog.NewEmbeddedServer(&eventlog.ServerConfig{
			Host:      "127.0.0.1",
			Port:      4222,
			StoreDir:  cfg.NATS.StoreDir,
			MaxMemory: cfg.NATS.MaxMemory,
			MaxStore:  cfg.NATS.MaxStore,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded event log server")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded event log server")
			}
		}()
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded event log server started")
	}

	// Bounded connect budget: a log that never comes up is a fatal
	// startup error, not an infinite retry loop.
	nc, js, err := eventlog.Connect(ctx, eventlog.ClientConfig{
		URL:                 natsURL,
		ConnectAttempts:     cfg.NATS.ConnectAttempts,
		ConnectTimeout:      cfg.NATS.ConnectTimeout,
		PrimaryWaitTimeout:  cfg.NATS.PrimaryWaitTimeout,
		PrimaryPollInterval: cfg.NATS.PrimaryPollInterval,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to event log")
	}
	defer nc.Close()

	streamCfg := eventlog.DefaultStreamConfig()
	streamCfg.Name = cfg.NATS.StreamName
	streamCfg.MaxAge = time.Duration(cfg.NATS.StreamRetentionDays) * 24 * time.Hour
	streamCfg.MaxBytes = cfg.NATS.MaxStore

	initializer, err := eventlog.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream initializer")
	}
	if _, err := initializer.EnsureStream(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision event stream")
	}
	logging.Info().Str("stream", streamCfg.Name).Msg("Event stream ready")

	// Registries. Aliases load first so talkgroup system display names
	// resolve during the initial load.
	aliases := sysalias.NewRegistry(cfg.Data.AliasFile)
	if err := aliases.Load(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load system aliases")
	}

	store := talkgroups.NewStore(cfg.Data.TalkgroupsDir, aliases)
	if err := store.Load(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load talkgroups")
	}
	logging.Info().
		Int("talkgroups", len(store.Snapshot().Talkgroups)).
		Int("systems", len(store.KnownSystems())).
		Msg("Registries loaded")

	hub := ws.NewHub()

	enricher := consumer.NewEnricher(store, aliases)
	feed := eventlog.NewStreamFeed(js, cfg.NATS.StreamName)
	feedConsumer := consumer.New(feed, store, aliases, enricher, hub, consumer.Config{
		Cooldown:       cfg.NATS.FeedCooldown,
		StatusInterval: cfg.NATS.StatusInterval,
	})

	publisher, err := eventlog.NewPublisher(eventlog.DefaultPublisherConfig(natsURL), nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	gate := dedup.NewGate(cfg.Ingest.DedupWindow)
	defer gate.Close()

	reader := eventlog.NewReader(js, cfg.NATS.StreamName, enricher)

	handler := api.NewHandler(store, aliases, reader, publisher, gate, hub, nil, cfg.Server.Version)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Registry layer: periodic persistence and hot reload.
	tree.AddRegistryService(talkgroups.NewSaver(store, cfg.Data.SaveInterval))
	tree.AddRegistryService(talkgroups.NewWatcher(store, hub))
	tree.AddRegistryService(sysalias.NewWatcher(aliases, hub))

	// Messaging layer: fan-out hub and the change-feed consumer.
	tree.AddMessagingService(supervisor.NewHubService(hub))
	tree.AddMessagingService(feedConsumer)

	// API layer.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	tree.AddAPIService(api.NewServerService(addr, router, cfg.Server.Timeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Airwave stopped gracefully")
}
