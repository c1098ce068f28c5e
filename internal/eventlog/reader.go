// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/airwave/internal/models"
)

// talkgroupHistoryLimit caps a single talkgroup's history at the most
// recent records within the 24 hour lookback.
const talkgroupHistoryLimit = 200

// talkgroupHistoryLookback bounds how far back talkgroup history goes.
const talkgroupHistoryLookback = 24 * time.Hour

// durationBuckets are the relative history windows the query surface
// accepts.
var durationBuckets = map[string]time.Duration{
	"30m": 30 * time.Minute,
	"2h":  2 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
}

// DurationBucket resolves a named history window ("30m", "2h", "6h",
// "12h").
func DurationBucket(name string) (time.Duration, error) {
	d, ok := durationBuckets[name]
	if !ok {
		return 0, fmt.Errorf("invalid duration parameter: %s", name)
	}
	return d, nil
}

// Enricher attaches registry metadata to an event before it leaves the
// query surface. Satisfied by consumer.Enricher.
type Enricher interface {
	Enrich(event *models.RadioEvent)
}

// TalkgroupHistory is the bounded recent history for one talkgroup.
type TalkgroupHistory struct {
	TalkgroupID  string               `json:"talkgroupId"`
	TotalEvents  int                  `json:"totalEvents"`
	UniqueRadios []string             `json:"uniqueRadios"`
	Events       []*models.RadioEvent `json:"events"`
}

// DurationHistory is every non-location event newer than a relative
// window, in ascending timestamp order.
type DurationHistory struct {
	Duration    int                  `json:"duration"` // minutes
	TotalEvents int                  `json:"totalEvents"`
	Events      []*models.RadioEvent `json:"events"`
}

// Reader serves bounded history queries against the event log. All
// stream reads pass through a circuit breaker: when the log is
// unreachable the breaker fails queries fast instead of stacking
// blocked requests behind a dead connection.
type Reader struct {
	js       jetstream.JetStream
	stream   string
	enricher Enricher
	breaker  *gobreaker.CircuitBreaker[[]*models.RadioEvent]

	// now is replaceable for tests.
	now func() time.Time
}

// NewReader creates a history reader for the named stream. The
// enricher may be nil, in which case events are returned raw.
func NewReader(js jetstream.JetStream, stream string, enricher Enricher) *Reader {
	settings := gobreaker.Settings{
		Name:        "history-reader",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Reader{
		js:       js,
		stream:   stream,
		enricher: enricher,
		breaker:  gobreaker.NewCircuitBreaker[[]*models.RadioEvent](settings),
		now:      time.Now,
	}
}

// ForTalkgroup returns the bounded recent history for one talkgroup:
// events from the last 24 hours, capped to the most recent 200, newest
// first, with the distinct radio ids observed across them.
func (r *Reader) ForTalkgroup(ctx context.Context, talkgroupID string) (*TalkgroupHistory, error) {
	since := r.now().Add(-talkgroupHistoryLookback)
	events, err := r.breaker.Execute(func() ([]*models.RadioEvent, error) {
		return r.query(ctx, models.SubjectForTalkgroup(talkgroupID), since)
	})
	if err != nil {
		return nil, fmt.Errorf("talkgroup %s history: %w", talkgroupID, err)
	}

	// query returns ascending log order; keep the most recent records
	// and present newest first.
	if len(events) > talkgroupHistoryLimit {
		events = events[len(events)-talkgroupHistoryLimit:]
	}
	reverse(events)

	seen := make(map[string]struct{})
	radios := make([]string, 0)
	for _, event := range events {
		r.enrich(event)
		if _, ok := seen[event.RadioID]; !ok {
			seen[event.RadioID] = struct{}{}
			radios = append(radios, event.RadioID)
		}
	}

	return &TalkgroupHistory{
		TalkgroupID:  talkgroupID,
		TotalEvents:  len(events),
		UniqueRadios: radios,
		Events:       events,
	}, nil
}

// Since returns every event newer than the named relative window,
// excluding location registrations, ascending by timestamp.
func (r *Reader) Since(ctx context.Context, bucket string) (*DurationHistory, error) {
	window, err := DurationBucket(bucket)
	if err != nil {
		return nil, err
	}

	since := r.now().Add(-window)
	events, err := r.breaker.Execute(func() ([]*models.RadioEvent, error) {
		return r.query(ctx, SubjectRoot, since)
	})
	if err != nil {
		return nil, fmt.Errorf("history since %s: %w", bucket, err)
	}

	filtered := events[:0]
	for _, event := range events {
		if event.EventType == models.EventTypeLocation {
			continue
		}
		r.enrich(event)
		filtered = append(filtered, event)
	}

	return &DurationHistory{
		Duration:    int(window / time.Minute),
		TotalEvents: len(filtered),
		Events:      filtered,
	}, nil
}

// query reads all stream records on a filter subject ingested at or
// after since, in log order. The read is bounded by the consumer's
// pending count at creation so a quiet subject cannot block it.
func (r *Reader) query(ctx context.Context, filterSubject string, since time.Time) ([]*models.RadioEvent, error) {
	stream, err := r.js.Stream(ctx, r.stream)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", r.stream, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stream info: %w", err)
	}
	if info.State.Msgs == 0 {
		return nil, nil
	}

	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{filterSubject},
		DeliverPolicy:  jetstream.DeliverByStartTimePolicy,
		OptStartTime:   &since,
	})
	if err != nil {
		return nil, fmt.Errorf("create history consumer: %w", err)
	}

	consInfo, err := cons.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("get consumer info: %w", err)
	}
	pending := consInfo.NumPending
	if pending == 0 {
		return nil, nil
	}

	it, err := cons.Messages()
	if err != nil {
		return nil, fmt.Errorf("open message iterator: %w", err)
	}

	// Stop the iterator when the request context ends so Next cannot
	// block past the caller's deadline; stopCancel releases the
	// goroutine (and stops the iterator) on normal return.
	stopCtx, stopCancel := context.WithCancel(ctx)
	defer stopCancel()
	go func() {
		<-stopCtx.Done()
		it.Stop()
	}()

	cutoff := models.FormatTimestamp(since)
	events := make([]*models.RadioEvent, 0, pending)
	for i := uint64(0); i < pending; i++ {
		msg, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("read history message: %w", err)
		}
		event, unmarshalErr := models.UnmarshalEvent(msg.Data())
		if unmarshalErr != nil {
			continue
		}
		// Delivery start time is the stream ingest time; compare the
		// event's own timestamp for the precise bound.
		if event.Timestamp < cutoff {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func (r *Reader) enrich(event *models.RadioEvent) {
	if r.enricher != nil {
		r.enricher.Enrich(event)
	}
}

func reverse(events []*models.RadioEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
