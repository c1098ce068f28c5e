// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package aggregator folds the broadcast event stream into a live
// per-talkgroup view: current radio affiliations, a rolling five-minute
// call window, and a transient glow highlight. The view is derived
// state, rebuildable at any time from a history backfill.
package aggregator

import (
	"context"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/airwave/internal/models"
)

const (
	// glowDuration is how long a talkgroup stays highlighted after an
	// event. A later event overwrites the deadline.
	glowDuration = 30 * time.Second

	// callWindow is the sliding window for call-frequency display.
	callWindow = 5 * time.Minute

	// historyChunkSize is how many backfill events are applied between
	// scheduling yields.
	historyChunkSize = 1000
)

// RadioState is the last observed event for one affiliated radio.
type RadioState struct {
	EventType string
	System    string
}

// CallStats describes call activity for one talkgroup: the total count
// since the last reset and the timestamps inside the rolling window.
type CallStats struct {
	Count  int
	Window []time.Time
}

// state is the mutable per-talkgroup record. Glow expiry is a stored
// deadline, never a scheduled callback: an expiry check compares
// against the deadline, so a sweep racing a fresh event can never clear
// the newer glow.
type state struct {
	radios       map[string]RadioState
	callCount    int
	callWindow   []time.Time
	lastEvent    string // raw event timestamp
	lastEventAt  time.Time
	glowType     string
	glowDeadline time.Time
}

// Aggregator maintains the per-talkgroup view. All methods are safe for
// concurrent use; event application is serialized by the internal lock
// so per-talkgroup transitions observe events in arrival order.
type Aggregator struct {
	mu       sync.Mutex
	states   map[string]*state
	metadata map[string]models.TalkgroupInfo
	systems  map[string]struct{}

	now func() time.Time
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		states:   make(map[string]*state),
		metadata: make(map[string]models.TalkgroupInfo),
		systems:  make(map[string]struct{}),
		now:      time.Now,
	}
}

// SetMetadata replaces the registry snapshot backing filters and the
// unassociated check. Systems named by the snapshot count as known.
func (a *Aggregator) SetMetadata(metadata map[string]models.TalkgroupInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata = metadata
	for _, info := range metadata {
		if info.ShortName != "" {
			a.systems[info.ShortName] = struct{}{}
		}
	}
}

// Reset clears affiliations and call statistics ahead of a history
// backfill. Talkgroup entries themselves are retained so a backfill
// covering fewer talkgroups does not drop rows from the view.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, st := range a.states {
		st.radios = make(map[string]RadioState)
		st.callCount = 0
		st.callWindow = nil
	}
}

// Apply folds one event into the view.
func (a *Aggregator) Apply(event *models.RadioEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apply(event, a.now())
}

func (a *Aggregator) apply(event *models.RadioEvent, now time.Time) {
	talkgroup := event.TalkgroupOrSource
	if talkgroup == "" {
		return
	}
	if event.System != "" {
		a.systems[event.System] = struct{}{}
	}

	st, ok := a.states[talkgroup]
	if !ok {
		st = &state{radios: make(map[string]RadioState)}
		a.states[talkgroup] = st
	}

	if event.EventType == models.EventTypeCall {
		st.callCount++
		at := event.Time()
		if at.IsZero() {
			at = now
		}
		st.callWindow = append(st.callWindow, at)
		st.purgeWindow(now)
	}

	if event.EventType == models.EventTypeOff {
		delete(st.radios, event.RadioID)
	} else if event.RadioID != "" {
		st.radios[event.RadioID] = RadioState{
			EventType: event.EventType,
			System:    event.System,
		}
	}

	st.lastEvent = event.Timestamp
	st.lastEventAt = event.Time()
	st.glowType = event.EventType
	st.glowDeadline = now.Add(glowDuration)
}

// purgeWindow drops call timestamps older than the window. Lazy: runs
// on each call append and on sweep.
func (s *state) purgeWindow(now time.Time) {
	cutoff := now.Add(-callWindow)
	kept := s.callWindow[:0]
	for _, ts := range s.callWindow {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.callWindow = kept
}

// ApplyHistory folds a backfill into the view in chunks, yielding the
// scheduler between chunks so live processing stays responsive. Returns
// ctx.Err() if canceled mid-backfill.
func (a *Aggregator) ApplyHistory(ctx context.Context, events []*models.RadioEvent) error {
	for start := 0; start < len(events); start += historyChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + historyChunkSize
		if end > len(events) {
			end = len(events)
		}

		a.mu.Lock()
		now := a.now()
		for _, event := range events[start:end] {
			a.apply(event, now)
		}
		a.mu.Unlock()

		runtime.Gosched()
	}
	return nil
}

// Sweep expires stale glows and purges aged-out call timestamps. Cheap
// enough to run every second; correctness does not depend on how often
// it runs because reads also check the stored deadlines.
func (a *Aggregator) Sweep() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for _, st := range a.states {
		if st.glowType != "" && !now.Before(st.glowDeadline) {
			st.glowType = ""
			st.glowDeadline = time.Time{}
		}
		st.purgeWindow(now)
	}
}

// Glow returns the highlight event type for a talkgroup, or "" when no
// glow is active. Checked against the deadline so a pending sweep is
// not required for correctness.
func (a *Aggregator) Glow(talkgroup string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[talkgroup]
	if !ok || st.glowType == "" || !a.now().Before(st.glowDeadline) {
		return ""
	}
	return st.glowType
}

// RadioState returns the last event type observed for a radio on a
// talkgroup, or "" when the radio is not affiliated.
func (a *Aggregator) RadioState(talkgroup, radioID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[talkgroup]
	if !ok {
		return ""
	}
	return st.radios[radioID].EventType
}

// CallStatsFor returns the call statistics for a talkgroup.
func (a *Aggregator) CallStatsFor(talkgroup string) CallStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[talkgroup]
	if !ok {
		return CallStats{}
	}
	st.purgeWindow(a.now())
	return CallStats{
		Count:  st.callCount,
		Window: append([]time.Time(nil), st.callWindow...),
	}
}

// KnownSystems returns every system short name observed in metadata or
// live traffic, sorted.
func (a *Aggregator) KnownSystems() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	systems := make([]string, 0, len(a.systems))
	for name := range a.systems {
		systems = append(systems, name)
	}
	sort.Strings(systems)
	return systems
}

// numericID parses a talkgroup id for ordering. Non-numeric ids sort
// after numeric ones, tie-broken by the raw string.
func numericID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

func lessNumeric(a, b string) bool {
	na, okA := numericID(a)
	nb, okB := numericID(b)
	switch {
	case okA && okB:
		if na != nb {
			return na < nb
		}
		return a < b
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}
