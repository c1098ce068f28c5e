// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package aggregator

import (
	"sort"

	"github.com/tomtom215/airwave/internal/models"
)

// SortBy selects the view ordering.
type SortBy string

const (
	// SortByID orders by ascending numeric talkgroup id. Default.
	SortByID SortBy = "id"
	// SortByCalls orders by raw call count descending.
	SortByCalls SortBy = "calls"
	// SortByRecent orders by most recent event timestamp descending.
	SortByRecent SortBy = "recent"
)

// Query selects and orders entries of the live view.
type Query struct {
	// ActiveOnly keeps talkgroups with at least one call since reset.
	ActiveOnly bool

	// Category and Tag match against registry metadata when non-empty.
	Category string
	Tag      string

	// System keeps talkgroups with at least one affiliated radio last
	// heard on that system.
	System string

	// ShowUnassociated keeps talkgroups with no descriptive metadata.
	ShowUnassociated bool

	// Excluded drops specific talkgroup ids.
	Excluded map[string]struct{}

	SortBy SortBy
}

// DefaultQuery matches the view's unfiltered defaults.
func DefaultQuery() Query {
	return Query{ShowUnassociated: true, SortBy: SortByID}
}

// Entry is one row of the rendered view.
type Entry struct {
	ID            string
	Radios        map[string]RadioState
	CallCount     int
	RecentCalls   int // calls inside the rolling window
	LastTimestamp string
	Glow          string
	Metadata      *models.TalkgroupInfo
}

// Entries returns the filtered, sorted view. Ordering is stable with a
// numeric-id tie-break so equal sort keys always render the same way.
func (a *Aggregator) Entries(q Query) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	ids := make([]string, 0, len(a.states))
	for id := range a.states {
		if a.matches(id, q) {
			ids = append(ids, id)
		}
	}

	sort.SliceStable(ids, func(i, j int) bool {
		switch q.SortBy {
		case SortByCalls:
			ci, cj := a.states[ids[i]].callCount, a.states[ids[j]].callCount
			if ci != cj {
				return ci > cj
			}
		case SortByRecent:
			ti, tj := a.states[ids[i]].lastEventAt, a.states[ids[j]].lastEventAt
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
		}
		return lessNumeric(ids[i], ids[j])
	})

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		st := a.states[id]
		st.purgeWindow(now)

		entry := Entry{
			ID:            id,
			Radios:        make(map[string]RadioState, len(st.radios)),
			CallCount:     st.callCount,
			RecentCalls:   len(st.callWindow),
			LastTimestamp: st.lastEvent,
		}
		for radio, rs := range st.radios {
			entry.Radios[radio] = rs
		}
		if st.glowType != "" && now.Before(st.glowDeadline) {
			entry.Glow = st.glowType
		}
		if meta, ok := a.metadata[id]; ok {
			m := meta
			entry.Metadata = &m
		}
		entries = append(entries, entry)
	}
	return entries
}

// matches applies every filter of q to one talkgroup. Caller holds the
// lock.
func (a *Aggregator) matches(id string, q Query) bool {
	if _, excluded := q.Excluded[id]; excluded {
		return false
	}

	st := a.states[id]
	meta, hasMeta := a.metadata[id]

	if q.System != "" {
		found := false
		for _, rs := range st.radios {
			if rs.System == q.System {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if q.Category != "" && (!hasMeta || meta.Category != q.Category) {
		return false
	}
	if q.Tag != "" && (!hasMeta || meta.Tag != q.Tag) {
		return false
	}

	if !q.ShowUnassociated {
		associated := hasMeta && (meta.AlphaTag != "" || meta.Description != "" || meta.Category != "" || meta.Tag != "")
		if !associated {
			return false
		}
	}

	if q.ActiveOnly && st.callCount == 0 {
		return false
	}

	return true
}
