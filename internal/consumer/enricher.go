// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package consumer turns the event log's change feed into the enriched
// application event stream: registry side effects, metadata
// enrichment, and fan-out forwarding, with indefinite reconnection.
package consumer

import (
	"github.com/tomtom215/airwave/internal/models"
	"github.com/tomtom215/airwave/internal/sysalias"
	"github.com/tomtom215/airwave/internal/talkgroups"
)

// Enricher attaches reference metadata to events before broadcast.
// When the talkgroup is known its record is attached; when that record
// names an owning system, the system's display alias is attached too.
type Enricher struct {
	store   *talkgroups.Store
	aliases *sysalias.Registry
}

// NewEnricher creates an enricher over the two registries.
func NewEnricher(store *talkgroups.Store, aliases *sysalias.Registry) *Enricher {
	return &Enricher{store: store, aliases: aliases}
}

// Enrich mutates the event in place. Unknown talkgroups pass through
// unenriched.
func (e *Enricher) Enrich(event *models.RadioEvent) {
	info := e.store.TalkgroupInfo(event.TalkgroupOrSource)
	if info == nil {
		return
	}
	event.TalkgroupInfo = info
	if info.ShortName != "" {
		event.SystemInfo = &models.SystemInfo{
			ShortName:   info.ShortName,
			DisplayName: e.aliases.GetAlias(info.ShortName),
		}
	}
}
