// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package api provides the HTTP query surface, the event ingest
// endpoint, and the websocket upgrade path, routed with Chi.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/airwave/internal/eventlog"
	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
	"github.com/tomtom215/airwave/internal/models"
	"github.com/tomtom215/airwave/internal/talkgroups"
	ws "github.com/tomtom215/airwave/internal/websocket"
)

// maxEventBody bounds the ingest request body.
const maxEventBody = 64 * 1024

// TalkgroupRegistry is the slice of the talkgroup store the handlers
// need.
type TalkgroupRegistry interface {
	Snapshot() talkgroups.Snapshot
	Get(decimal string) *talkgroups.Record
	Upsert(decimal string, rec talkgroups.Record) error
	Save(shortName string) error
	Clear()
	Load() error
	KnownSystems() []talkgroups.System
}

// AliasRegistry is the slice of the alias registry the handlers need.
type AliasRegistry interface {
	GetAlias(shortName string) string
	UpdateAlias(shortName, alias string) error
}

// HistoryReader serves the bounded history queries.
type HistoryReader interface {
	ForTalkgroup(ctx context.Context, talkgroupID string) (*eventlog.TalkgroupHistory, error)
	Since(ctx context.Context, bucket string) (*eventlog.DurationHistory, error)
}

// EventPublisher appends accepted events to the log.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.RadioEvent) error
}

// DedupGate is the ingest-side duplicate suppressor.
type DedupGate interface {
	Submit(event *models.RadioEvent) bool
}

// Notifier broadcasts registry-change control messages.
type Notifier interface {
	NotifyControl(messageType string)
}

// Handler holds the HTTP handler dependencies.
type Handler struct {
	store     TalkgroupRegistry
	aliases   AliasRegistry
	reader    HistoryReader
	publisher EventPublisher
	gate      DedupGate
	hub       *ws.Hub
	notifier  Notifier
	version   string
	upgrader  websocket.Upgrader
}

// NewHandler creates a Handler. hub may be nil in tests that do not
// exercise the websocket path; a nil notifier falls back to the hub.
func NewHandler(store TalkgroupRegistry, aliases AliasRegistry, reader HistoryReader, publisher EventPublisher, gate DedupGate, hub *ws.Hub, notifier Notifier, version string) *Handler {
	if notifier == nil && hub != nil {
		notifier = hub
	}
	return &Handler{
		store:     store,
		aliases:   aliases,
		reader:    reader,
		publisher: publisher,
		gate:      gate,
		hub:       hub,
		notifier:  notifier,
		version:   version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// statusResponse is the generic mutation acknowledgement.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// GetTalkgroups returns the full registry snapshot.
func (h *Handler) GetTalkgroups(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

// ReloadTalkgroups clears the in-memory registry and re-reads every
// partition file from disk.
func (h *Handler) ReloadTalkgroups(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	if err := h.store.Load(); err != nil {
		logging.Err(err).Msg("talkgroup reload failed")
		respondError(w, http.StatusInternalServerError, "failed to reload talkgroups: "+err.Error())
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyControl(ws.MessageTypeTalkgroupsReloaded)
	}

	count := len(h.store.Snapshot().Talkgroups)
	respondJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Reloaded %d talkgroups", count),
	})
}

// UpdateTalkgroup applies an explicit edit to one registry record and
// persists the owning partition.
func (h *Handler) UpdateTalkgroup(w http.ResponseWriter, r *http.Request) {
	decimal := chi.URLParam(r, "decimal")

	var rec talkgroups.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.Upsert(decimal, rec); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	shortName := ""
	if stored := h.store.Get(decimal); stored != nil {
		shortName = stored.ShortName
	}
	if err := h.store.Save(shortName); err != nil {
		logging.Err(err).Str("talkgroup", decimal).Msg("failed to persist talkgroup edit")
		respondError(w, http.StatusInternalServerError, "failed to save talkgroups")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Talkgroup updated"})
}

// TalkgroupHistory returns the bounded recent history for one
// talkgroup.
func (h *Handler) TalkgroupHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := h.reader.ForTalkgroup(r.Context(), id)
	if err != nil {
		logging.Err(err).Str("talkgroup", id).Msg("talkgroup history query failed")
		respondError(w, http.StatusInternalServerError, "failed to fetch talkgroup history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// DurationHistory returns all non-location events within a duration
// bucket.
func (h *Handler) DurationHistory(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "duration")
	if _, err := eventlog.DurationBucket(bucket); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.reader.Since(r.Context(), bucket)
	if err != nil {
		logging.Err(err).Str("duration", bucket).Msg("duration history query failed")
		respondError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// GetSystemAlias resolves one system's display alias. Never fails: an
// unknown system resolves to its generated default.
func (h *Handler) GetSystemAlias(w http.ResponseWriter, r *http.Request) {
	shortName := chi.URLParam(r, "shortName")
	respondJSON(w, http.StatusOK, map[string]string{
		"shortName": shortName,
		"alias":     h.aliases.GetAlias(shortName),
	})
}

// SetSystemAlias stores an explicit display alias.
func (h *Handler) SetSystemAlias(w http.ResponseWriter, r *http.Request) {
	shortName := chi.URLParam(r, "shortName")

	var body struct {
		Alias string `json:"alias"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.aliases.UpdateAlias(shortName, body.Alias); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyControl(ws.MessageTypeAliasesUpdated)
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Alias updated"})
}

// GetConfig returns the client-facing configuration: the systems
// available for filtering.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"systemFilters": h.store.KnownSystems(),
	})
}

// Version returns the server version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IngestEvent accepts one producer event: validate, normalize, dedup,
// append to the log. Duplicates within the suppression window are
// acknowledged but not appended.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := models.UnmarshalEvent(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if err := event.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}

	// The ingest boundary owns identity and time: producer-supplied
	// values for either are not trusted.
	event.EventID = uuid.New().String()
	event.Timestamp = models.FormatTimestamp(time.Now())

	if !h.gate.Submit(event) {
		respondJSON(w, http.StatusOK, statusResponse{Status: "skipped", Message: "Duplicate event within time window"})
		return
	}

	if err := h.publisher.PublishEvent(r.Context(), event); err != nil {
		logging.Err(err).Str("system", event.System).Msg("failed to append event")
		respondJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: "Failed to log event"})
		return
	}

	metrics.RecordEventIngested(event.EventType)
	respondJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Event logged successfully"})
}

// WebSocket upgrades the connection and registers the client with the
// fan-out hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
