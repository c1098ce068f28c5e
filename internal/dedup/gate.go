// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package dedup implements the ingestion-time deduplication gate.
//
// Producers may emit the same logical state change several times within
// a short burst (radio retransmission). The gate collapses those bursts
// before they reach the event log. It is a best-effort, single-process,
// in-memory mechanism and provides no cross-process guarantee.
package dedup

import (
	"sync"
	"time"

	"github.com/tomtom215/airwave/internal/metrics"
	"github.com/tomtom215/airwave/internal/models"
)

// DefaultWindow is the suppression window for identical events.
const DefaultWindow = 5 * time.Second

// sweepInterval controls how often expired keys are removed. Expiry is
// also checked on access, so the sweep only bounds memory growth.
const sweepInterval = time.Second

// Gate suppresses re-submission of an identical event within a fixed
// window. Keys carry a deadline checked on access and removed by a
// periodic sweep; expiry never runs as a per-key callback, so a key
// refreshed at t' cannot be cleared by a timer armed at t < t'.
type Gate struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	window    time.Duration
	stop      chan struct{}
	stopOnce  sync.Once

	// now is replaceable for tests.
	now func() time.Time
}

// NewGate creates a gate with the given suppression window and starts
// its background sweep. Window <= 0 uses DefaultWindow.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Gate{
		deadlines: make(map[string]time.Time),
		window:    window,
		stop:      make(chan struct{}),
		now:       time.Now,
	}
	go g.sweepLoop()
	return g
}

// Submit reports whether the event should be forwarded to the log.
// A false return means an identical event was accepted within the
// suppression window; the call has no side effects in that case.
func (g *Gate) Submit(event *models.RadioEvent) bool {
	key := event.DedupKey()
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if deadline, ok := g.deadlines[key]; ok && now.Before(deadline) {
		metrics.RecordDuplicateSuppressed()
		return false
	}

	g.deadlines[key] = now.Add(g.window)
	return true
}

// Len returns the number of tracked keys, expired or not.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.deadlines)
}

// Close stops the background sweep. The gate remains usable; only the
// periodic cleanup stops.
func (g *Gate) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *Gate) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep removes keys whose deadline has elapsed.
func (g *Gate) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for key, deadline := range g.deadlines {
		if !now.Before(deadline) {
			delete(g.deadlines, key)
		}
	}
}
