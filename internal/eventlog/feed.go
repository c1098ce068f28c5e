// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package eventlog

import (
	"fmt"

	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/models"
)

// FeedMessage is one log record delivered by the change feed, with the
// stream sequence the consumer resumes from after a reconnect.
type FeedMessage struct {
	Event    *models.RadioEvent
	Sequence uint64
}

// Feed is the change feed over the event log. The consumer depends on
// this interface rather than JetStream directly so its reconnect logic
// is testable without a server.
type Feed interface {
	// Watch streams log records with sequence greater than afterSeq,
	// in log order. afterSeq of 0 starts at new events only (live
	// tail). The returned channel is closed when the feed fails or the
	// context is canceled; the caller decides whether to re-Watch.
	Watch(ctx context.Context, afterSeq uint64) (<-chan FeedMessage, error)
}

// StreamFeed implements Feed with a JetStream ordered consumer. An
// ordered consumer is ephemeral and recreated server-side on gaps, so
// per-message acks are unnecessary and in-order delivery is guaranteed.
type StreamFeed struct {
	js     jetstream.JetStream
	stream string
}

// NewStreamFeed creates the change feed for the named stream.
func NewStreamFeed(js jetstream.JetStream, stream string) *StreamFeed {
	return &StreamFeed{js: js, stream: stream}
}

// Watch implements Feed.
func (f *StreamFeed) Watch(ctx context.Context, afterSeq uint64) (<-chan FeedMessage, error) {
	stream, err := f.js.Stream(ctx, f.stream)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", f.stream, err)
	}

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectRoot},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	}
	if afterSeq > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSeq + 1
	}

	cons, err := stream.OrderedConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	it, err := cons.Messages()
	if err != nil {
		return nil, fmt.Errorf("open message iterator: %w", err)
	}

	ch := make(chan FeedMessage)

	go func() {
		<-ctx.Done()
		it.Stop()
	}()

	go func() {
		defer close(ch)
		for {
			msg, err := it.Next()
			if err != nil {
				// Iterator stopped or the consumer failed; the caller
				// re-establishes the feed from its last sequence.
				return
			}

			meta, err := msg.Metadata()
			if err != nil {
				logging.Err(err).Msg("feed message missing metadata, skipping")
				continue
			}

			event, err := models.UnmarshalEvent(msg.Data())
			if err != nil {
				logging.Err(err).
					Uint64("sequence", meta.Sequence.Stream).
					Msg("undecodable feed record, skipping")
				continue
			}

			select {
			case ch <- FeedMessage{Event: event, Sequence: meta.Sequence.Stream}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
