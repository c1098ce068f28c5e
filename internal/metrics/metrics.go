// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package metrics provides Prometheus instrumentation for the event
// pipeline: ingest and dedup on the write path, feed consumption and
// reconnects, websocket fan-out, and registry persistence.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Write path

	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_events_ingested_total",
			Help: "Total number of events accepted on the ingest path",
		},
		[]string{"event_type"},
	)

	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwave_duplicates_suppressed_total",
			Help: "Total number of events rejected by the dedup gate",
		},
	)

	LogPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwave_log_publishes_total",
			Help: "Total number of events published to the event log",
		},
	)

	LogPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwave_log_publish_errors_total",
			Help: "Total number of failed event log publishes",
		},
	)

	// Change feed

	FeedEventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwave_feed_events_processed_total",
			Help: "Total number of change feed events processed",
		},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwave_feed_reconnects_total",
			Help: "Total number of change feed reconnect attempts",
		},
	)

	// Fan-out

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airwave_websocket_connections",
			Help: "Current number of connected websocket subscribers",
		},
	)

	WSBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_websocket_broadcasts_total",
			Help: "Total number of broadcast messages by type",
		},
		[]string{"message_type"},
	)

	// Registries

	RegistrySaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_registry_saves_total",
			Help: "Total number of registry partition saves",
		},
		[]string{"registry"},
	)

	RegistrySaveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_registry_save_errors_total",
			Help: "Total number of failed registry partition saves",
		},
		[]string{"registry"},
	)

	RegistryReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwave_registry_reloads_total",
			Help: "Total number of registry reloads triggered by file watches",
		},
		[]string{"registry"},
	)

	UnknownTalkgroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airwave_unknown_talkgroups",
			Help: "Current number of auto-provisioned unknown talkgroups",
		},
	)
)

// RecordEventIngested increments the ingest counter for one event type.
func RecordEventIngested(eventType string) {
	EventsIngested.WithLabelValues(eventType).Inc()
}

// RecordDuplicateSuppressed increments the dedup rejection counter.
func RecordDuplicateSuppressed() {
	DuplicatesSuppressed.Inc()
}

// RecordLogPublish increments the event log publish counter.
func RecordLogPublish() {
	LogPublishes.Inc()
}

// RecordLogPublishError increments the event log publish error counter.
func RecordLogPublishError() {
	LogPublishErrors.Inc()
}

// RecordFeedEvent increments the change feed processed counter.
func RecordFeedEvent() {
	FeedEventsProcessed.Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect() {
	FeedReconnects.Inc()
}

// RecordBroadcast increments the broadcast counter for one message type.
func RecordBroadcast(messageType string) {
	WSBroadcasts.WithLabelValues(messageType).Inc()
}

// RecordRegistrySave increments the save counter for one registry.
func RecordRegistrySave(registry string) {
	RegistrySaves.WithLabelValues(registry).Inc()
}

// RecordRegistrySaveError increments the save error counter for one registry.
func RecordRegistrySaveError(registry string) {
	RegistrySaveErrors.WithLabelValues(registry).Inc()
}

// RecordRegistryReload increments the reload counter for one registry.
func RecordRegistryReload(registry string) {
	RegistryReloads.WithLabelValues(registry).Inc()
}
