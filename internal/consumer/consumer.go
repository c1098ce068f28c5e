// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package consumer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/airwave/internal/eventlog"
	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
	"github.com/tomtom215/airwave/internal/models"
)

// NotifySystemsUpdated is broadcast when a system short name appears
// in live traffic for the first time.
const NotifySystemsUpdated = "systems_updated"

// referenceStore is the slice of the talkgroup store the consumer
// needs for its per-event side effects.
type referenceStore interface {
	RegisterUnknown(system, decimal string) bool
}

// aliasRegistry is the slice of the alias registry the consumer needs.
type aliasRegistry interface {
	AddSystem(shortName, alias string) (bool, error)
}

// enricher attaches registry metadata before broadcast.
type enricher interface {
	Enrich(event *models.RadioEvent)
}

// Broadcaster forwards enriched events and control notifications to
// subscribers. Satisfied by *websocket.Hub.
type Broadcaster interface {
	BroadcastEvent(event *models.RadioEvent)
	NotifyControl(messageType string)
}

// Config tunes the consumer's resilience behavior.
type Config struct {
	// Cooldown is the fixed wait before re-opening the feed after an
	// error or closure.
	Cooldown time.Duration

	// StatusInterval is the period of the processed-count status log.
	StatusInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Cooldown:       5 * time.Second,
		StatusInterval: 30 * time.Second,
	}
}

// Consumer watches the change feed and, for every insert: registers
// unknown talkgroups and novel systems (both persisted immediately),
// enriches the event, and forwards it to the hub in log order.
//
// Once running the consumer never gives up: a feed error or closure is
// followed by a fixed cool-down and a resume from the last delivered
// sequence. Only context cancellation stops it. Implements
// suture.Service.
type Consumer struct {
	feed     eventlog.Feed
	store    referenceStore
	aliases  aliasRegistry
	enricher enricher
	hub      Broadcaster
	cfg      Config

	lastSeq   uint64
	processed atomic.Int64
}

// New creates a consumer. Zero-value durations in cfg fall back to
// defaults.
func New(feed eventlog.Feed, store referenceStore, aliases aliasRegistry, enr enricher, hub Broadcaster, cfg Config) *Consumer {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 30 * time.Second
	}
	return &Consumer{
		feed:     feed,
		store:    store,
		aliases:  aliases,
		enricher: enr,
		hub:      hub,
		cfg:      cfg,
	}
}

// Processed returns the number of events handled since start.
func (c *Consumer) Processed() int64 {
	return c.processed.Load()
}

// Serve implements suture.Service. It runs the watch/cool-down loop
// until the context is canceled.
func (c *Consumer) Serve(ctx context.Context) error {
	statusTicker := time.NewTicker(c.cfg.StatusInterval)
	defer statusTicker.Stop()

	for {
		ch, err := c.feed.Watch(ctx, c.lastSeq)
		if err != nil {
			logging.Err(err).Uint64("afterSeq", c.lastSeq).Msg("failed to open change feed")
			if err := c.cooldown(ctx); err != nil {
				return err
			}
			continue
		}

		logging.Info().Uint64("afterSeq", c.lastSeq).Msg("watching change feed")

	watching:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case <-statusTicker.C:
				logging.Info().Int64("count", c.processed.Load()).Msg("processed messages")

			case msg, ok := <-ch:
				if !ok {
					break watching
				}
				c.handle(msg)
			}
		}

		logging.Warn().
			Uint64("lastSeq", c.lastSeq).
			Dur("cooldown", c.cfg.Cooldown).
			Msg("change feed closed, reconnecting")
		if err := c.cooldown(ctx); err != nil {
			return err
		}
	}
}

// cooldown waits the fixed reconnect delay, honoring cancellation.
func (c *Consumer) cooldown(ctx context.Context) error {
	metrics.RecordFeedReconnect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.Cooldown):
		return nil
	}
}

// handle applies one log record: registry side effects, enrichment,
// broadcast. Ordering is preserved because handle runs on the single
// watch loop goroutine.
func (c *Consumer) handle(msg eventlog.FeedMessage) {
	c.lastSeq = msg.Sequence
	event := msg.Event

	c.store.RegisterUnknown(event.System, event.TalkgroupOrSource)

	if event.System != "" {
		added, err := c.aliases.AddSystem(event.System, "")
		if err != nil {
			logging.Err(err).Str("system", event.System).Msg("failed to register system")
		} else if added {
			c.hub.NotifyControl(NotifySystemsUpdated)
		}
	}

	c.enricher.Enrich(event)
	c.hub.BroadcastEvent(event)

	c.processed.Add(1)
	metrics.RecordFeedEvent()
}

// String implements fmt.Stringer for supervisor logging.
func (c *Consumer) String() string {
	return "change-consumer"
}
