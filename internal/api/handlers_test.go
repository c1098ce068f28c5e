// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/airwave/internal/eventlog"
	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/models"
	"github.com/tomtom215/airwave/internal/talkgroups"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type fakeRegistry struct {
	records map[string]talkgroups.Record
	saved   []string
	loads   int
	clears  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: make(map[string]talkgroups.Record)}
}

func (f *fakeRegistry) Snapshot() talkgroups.Snapshot {
	return talkgroups.Snapshot{Talkgroups: f.records, UnknownTalkgroups: []string{}}
}

func (f *fakeRegistry) Get(decimal string) *talkgroups.Record {
	rec, ok := f.records[decimal]
	if !ok {
		return nil
	}
	return &rec
}

func (f *fakeRegistry) Upsert(decimal string, rec talkgroups.Record) error {
	if strings.TrimSpace(rec.AlphaTag) == "" {
		return &models.ValidationError{Field: "alphaTag", Message: "required"}
	}
	f.records[decimal] = rec
	return nil
}

func (f *fakeRegistry) Save(shortName string) error {
	f.saved = append(f.saved, shortName)
	return nil
}

func (f *fakeRegistry) Clear() { f.clears++ }

func (f *fakeRegistry) Load() error {
	f.loads++
	return nil
}

func (f *fakeRegistry) KnownSystems() []talkgroups.System {
	return []talkgroups.System{{ShortName: "hamco", DisplayName: "Ham"}}
}

type fakeAliases struct {
	aliases map[string]string
	updated [][2]string
}

func (f *fakeAliases) GetAlias(shortName string) string {
	if alias, ok := f.aliases[shortName]; ok {
		return alias
	}
	return shortName
}

func (f *fakeAliases) UpdateAlias(shortName, alias string) error {
	if strings.ContainsAny(shortName, " .") {
		return &models.ValidationError{Field: "shortName", Message: "invalid format"}
	}
	f.updated = append(f.updated, [2]string{shortName, alias})
	return nil
}

type fakeReader struct {
	talkgroup *eventlog.TalkgroupHistory
	duration  *eventlog.DurationHistory
}

func (f *fakeReader) ForTalkgroup(ctx context.Context, id string) (*eventlog.TalkgroupHistory, error) {
	return f.talkgroup, nil
}

func (f *fakeReader) Since(ctx context.Context, bucket string) (*eventlog.DurationHistory, error) {
	return f.duration, nil
}

type fakePublisher struct {
	events []*models.RadioEvent
}

func (f *fakePublisher) PublishEvent(ctx context.Context, event *models.RadioEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeGate struct {
	reject bool
}

func (f *fakeGate) Submit(event *models.RadioEvent) bool { return !f.reject }

type fakeNotifier struct {
	controls []string
}

func (f *fakeNotifier) NotifyControl(messageType string) {
	f.controls = append(f.controls, messageType)
}

type testEnv struct {
	store     *fakeRegistry
	aliases   *fakeAliases
	reader    *fakeReader
	publisher *fakePublisher
	gate      *fakeGate
	notifier  *fakeNotifier
	router    http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     newFakeRegistry(),
		aliases:   &fakeAliases{aliases: map[string]string{"hamco": "Ham"}},
		reader:    &fakeReader{},
		publisher: &fakePublisher{},
		gate:      &fakeGate{},
		notifier:  &fakeNotifier{},
	}
	h := NewHandler(env.store, env.aliases, env.reader, env.publisher, env.gate, nil, env.notifier, "1.2.3")
	env.router = NewRouter(h, DefaultRouterConfig())
	return env
}

func (env *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestGetTalkgroups(t *testing.T) {
	env := newTestEnv()
	env.store.records["101"] = talkgroups.Record{AlphaTag: "Dispatch", ShortName: "hamco"}

	rec := env.request(t, http.MethodGet, "/api/talkgroups", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var snap talkgroups.Snapshot
	decode(t, rec, &snap)
	if snap.Talkgroups["101"].AlphaTag != "Dispatch" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestReloadTalkgroups(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/api/talkgroups/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.store.clears != 1 || env.store.loads != 1 {
		t.Errorf("clears=%d loads=%d, want 1/1", env.store.clears, env.store.loads)
	}
	if len(env.notifier.controls) != 1 || env.notifier.controls[0] != "talkgroups_reloaded" {
		t.Errorf("controls = %v", env.notifier.controls)
	}
}

func TestUpdateTalkgroup(t *testing.T) {
	env := newTestEnv()
	env.store.records["101"] = talkgroups.Record{AlphaTag: "Old", ShortName: "hamco"}

	rec := env.request(t, http.MethodPost, "/api/talkgroups/101", talkgroups.Record{
		AlphaTag: "Dispatch", ShortName: "hamco",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.store.records["101"].AlphaTag != "Dispatch" {
		t.Errorf("record not updated: %+v", env.store.records["101"])
	}
	if len(env.store.saved) != 1 || env.store.saved[0] != "hamco" {
		t.Errorf("saved partitions = %v, want [hamco]", env.store.saved)
	}
}

func TestUpdateTalkgroupRequiresAlphaTag(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/api/talkgroups/101", talkgroups.Record{Description: "no tag"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(env.store.saved) != 0 {
		t.Errorf("save should not run on validation failure")
	}
}

func TestTalkgroupHistory(t *testing.T) {
	env := newTestEnv()
	env.reader.talkgroup = &eventlog.TalkgroupHistory{
		TalkgroupID:  "101",
		TotalEvents:  1,
		UniqueRadios: []string{"500"},
		Events: []*models.RadioEvent{{
			EventID: "evt-1", System: "hamco", RadioID: "500",
			TalkgroupOrSource: "101", EventType: models.EventTypeCall,
			Timestamp: models.FormatTimestamp(time.Now()),
		}},
	}

	rec := env.request(t, http.MethodGet, "/api/talkgroups/101/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var history eventlog.TalkgroupHistory
	decode(t, rec, &history)
	if history.TalkgroupID != "101" || history.TotalEvents != 1 {
		t.Errorf("history = %+v", history)
	}
}

func TestDurationHistoryRejectsUnknownBucket(t *testing.T) {
	env := newTestEnv()
	env.reader.duration = &eventlog.DurationHistory{}

	if rec := env.request(t, http.MethodGet, "/api/history/2h", nil); rec.Code != http.StatusOK {
		t.Errorf("valid bucket status = %d", rec.Code)
	}
	if rec := env.request(t, http.MethodGet, "/api/history/24h", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid bucket status = %d, want 400", rec.Code)
	}
}

func TestSystemAlias(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodGet, "/api/system-alias/hamco", nil)
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["alias"] != "Ham" {
		t.Errorf("alias = %q, want Ham", resp["alias"])
	}

	rec = env.request(t, http.MethodPost, "/api/system-alias/butco", map[string]string{"alias": "Butler"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set alias status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(env.aliases.updated) != 1 || env.aliases.updated[0] != [2]string{"butco", "Butler"} {
		t.Errorf("updates = %v", env.aliases.updated)
	}
	if len(env.notifier.controls) != 1 || env.notifier.controls[0] != "system_aliases_updated" {
		t.Errorf("controls = %v", env.notifier.controls)
	}
}

func TestSetSystemAliasRejectsBadShortName(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/api/system-alias/bad.name", map[string]string{"alias": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConfigAndVersion(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodGet, "/api/config", nil)
	var cfg struct {
		SystemFilters []talkgroups.System `json:"systemFilters"`
	}
	decode(t, rec, &cfg)
	if len(cfg.SystemFilters) != 1 || cfg.SystemFilters[0].ShortName != "hamco" {
		t.Errorf("systemFilters = %v", cfg.SystemFilters)
	}

	rec = env.request(t, http.MethodGet, "/api/version", nil)
	var version map[string]string
	decode(t, rec, &version)
	if version["version"] != "1.2.3" {
		t.Errorf("version = %v", version)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()
	rec := env.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngestEvent(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/api/event", map[string]interface{}{
		"shortName": "hamco", "radioID": "500",
		"eventType": "call", "talkgroupOrSource": "101",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if len(env.publisher.events) != 1 {
		t.Fatalf("published = %d, want 1", len(env.publisher.events))
	}
	event := env.publisher.events[0]
	if event.System != "hamco" {
		t.Errorf("System = %q, want normalized from shortName", event.System)
	}
	if event.RadioID != "500" {
		t.Errorf("RadioID = %q, want normalized from radioID", event.RadioID)
	}
	if event.EventID == "" || event.Timestamp == "" {
		t.Error("ingest should assign identity and timestamp")
	}
	if _, err := models.ParseTimestamp(event.Timestamp); err != nil {
		t.Errorf("timestamp %q not whole-second UTC: %v", event.Timestamp, err)
	}
}

func TestIngestEventValidation(t *testing.T) {
	env := newTestEnv()

	rec := env.request(t, http.MethodPost, "/api/event", map[string]interface{}{
		"radioID": "500", "eventType": "call",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing system", rec.Code)
	}
	if len(env.publisher.events) != 0 {
		t.Errorf("invalid event should not publish")
	}
}

func TestIngestEventDuplicateSkipped(t *testing.T) {
	env := newTestEnv()
	env.gate.reject = true

	rec := env.request(t, http.MethodPost, "/api/event", map[string]interface{}{
		"shortName": "hamco", "radioID": "500",
		"eventType": "call", "talkgroupOrSource": "101",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp statusResponse
	decode(t, rec, &resp)
	if resp.Status != "skipped" {
		t.Errorf("status = %q, want skipped", resp.Status)
	}
	if len(env.publisher.events) != 0 {
		t.Errorf("duplicate should not publish")
	}
}
