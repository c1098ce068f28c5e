// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package models defines the canonical wire types shared by the ingest
// path, the event log, the change consumer and the websocket fan-out.
package models

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TimestampLayout is ISO-8601 UTC truncated to whole seconds. Producers
// and file-derived timestamps use the same layout so string comparison
// is byte-stable.
const TimestampLayout = "2006-01-02T15:04:05Z"

// EventType constants for radio events.
const (
	// EventTypeCall indicates a voice call on a talkgroup.
	EventTypeCall = "call"
	// EventTypeOn indicates a radio affiliating with a talkgroup.
	EventTypeOn = "on"
	// EventTypeOff indicates a radio leaving a talkgroup.
	EventTypeOff = "off"
	// EventTypeJoin indicates a radio joining an active call.
	EventTypeJoin = "join"
	// EventTypeAckResp indicates an acknowledgement response from a unit.
	EventTypeAckResp = "ackresp"
	// EventTypeLocation indicates a location registration update.
	EventTypeLocation = "location"
)

// RadioEvent is the canonical record describing one radio-network
// occurrence. It is created by the ingest boundary, never mutated after
// insertion into the log, and read many times by consumers.
//
// The producer's payload uses shortName and systemShortName
// interchangeably for the same field; Normalize collapses both into
// System at the ingest boundary so downstream code checks one name.
type RadioEvent struct {
	EventID           string   `json:"eventId,omitempty"`
	System            string   `json:"system"`
	RadioID           string   `json:"radioId"`
	TalkgroupOrSource string   `json:"talkgroupOrSource"`
	EventType         string   `json:"eventType"`
	Timestamp         string   `json:"timestamp"`
	PatchedTalkgroups []string `json:"patchedTalkgroups,omitempty"`

	// Enrichment attached by the fan-out stage. Absent on the raw
	// log record.
	TalkgroupInfo *TalkgroupInfo `json:"talkgroupInfo,omitempty"`
	SystemInfo    *SystemInfo    `json:"systemInfo,omitempty"`
}

// TalkgroupInfo is the reference metadata attached to an enriched event.
type TalkgroupInfo struct {
	Hex         string `json:"hex"`
	AlphaTag    string `json:"alphaTag"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
	Category    string `json:"category"`
	ShortName   string `json:"shortName,omitempty"`
}

// SystemInfo names the system a talkgroup belongs to.
type SystemInfo struct {
	ShortName   string `json:"shortName"`
	DisplayName string `json:"displayName"`
}

// NewRadioEvent creates an event with a unique ID and a whole-second
// UTC timestamp.
func NewRadioEvent(system string) *RadioEvent {
	return &RadioEvent{
		EventID:   uuid.New().String(),
		System:    system,
		Timestamp: FormatTimestamp(time.Now()),
	}
}

// Validate checks required fields.
func (e *RadioEvent) Validate() error {
	if e.System == "" {
		return &ValidationError{Field: "system", Message: "required"}
	}
	if e.RadioID == "" {
		return &ValidationError{Field: "radioId", Message: "required"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "eventType", Message: "required"}
	}
	return nil
}

// DedupKey is the composite key used by the ingest dedup gate. Two
// events with the same key within the suppression window describe the
// same logical state change.
func (e *RadioEvent) DedupKey() string {
	return e.System + "-" + e.RadioID + "-" + e.EventType + "-" + e.TalkgroupOrSource
}

// Subject returns the JetStream subject for this event.
// Format: radio.event.<system>.<talkgroupOrSource>
func (e *RadioEvent) Subject() string {
	return "radio.event." + subjectToken(e.System) + "." + subjectToken(e.TalkgroupOrSource)
}

// SubjectForTalkgroup returns the filter subject matching every event
// for one talkgroup across all systems.
func SubjectForTalkgroup(talkgroup string) string {
	return "radio.event.*." + subjectToken(talkgroup)
}

// subjectToken makes a value safe for use as a NATS subject token.
// System short names are validated to [A-Za-z0-9_-] and talkgroup ids
// are decimal strings, so this only guards the empty and whitespace
// cases.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "none"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}

// Time parses the event timestamp. Zero time on parse failure.
func (e *RadioEvent) Time() time.Time {
	t, err := time.Parse(TimestampLayout, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTimestamp renders t as ISO-8601 UTC with whole seconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 whole-second UTC timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e *RadioEvent) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON, normalizing legacy
// field aliases.
func UnmarshalEvent(data []byte) (*RadioEvent, error) {
	var raw rawRadioEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw.normalize(), nil
}

// rawRadioEvent mirrors RadioEvent but accepts the producer's legacy
// field aliases (shortName, systemShortName, radioID).
type rawRadioEvent struct {
	RadioEvent
	ShortName       string `json:"shortName,omitempty"`
	SystemShortName string `json:"systemShortName,omitempty"`
	RadioIDLegacy   string `json:"radioID,omitempty"`
}

// normalize collapses the aliased fields into the canonical ones.
// systemShortName wins over shortName, which wins over system, matching
// the precedence consumers historically applied.
func (r *rawRadioEvent) normalize() *RadioEvent {
	e := r.RadioEvent
	if r.SystemShortName != "" {
		e.System = r.SystemShortName
	} else if r.ShortName != "" {
		e.System = r.ShortName
	}
	if e.RadioID == "" && r.RadioIDLegacy != "" {
		e.RadioID = r.RadioIDLegacy
	}
	return &e
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
