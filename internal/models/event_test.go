// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package models

import (
	"strings"
	"testing"
	"time"
)

func TestNewRadioEvent(t *testing.T) {
	e := NewRadioEvent("hamco")
	if e.EventID == "" {
		t.Error("EventID should be assigned")
	}
	if e.System != "hamco" {
		t.Errorf("System = %q", e.System)
	}
	if _, err := ParseTimestamp(e.Timestamp); err != nil {
		t.Errorf("Timestamp %q does not parse: %v", e.Timestamp, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		event     RadioEvent
		wantField string
	}{
		{
			name:  "valid",
			event: RadioEvent{System: "hamco", RadioID: "500", EventType: EventTypeCall},
		},
		{
			name:      "missing system",
			event:     RadioEvent{RadioID: "500", EventType: EventTypeCall},
			wantField: "system",
		},
		{
			name:      "missing radio id",
			event:     RadioEvent{System: "hamco", EventType: EventTypeCall},
			wantField: "radioId",
		},
		{
			name:      "missing event type",
			event:     RadioEvent{System: "hamco", RadioID: "500"},
			wantField: "eventType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestUnmarshalEventNormalizesAliases(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantSystem string
		wantRadio  string
	}{
		{
			name:       "canonical fields",
			payload:    `{"system":"hamco","radioId":"500","eventType":"call"}`,
			wantSystem: "hamco",
			wantRadio:  "500",
		},
		{
			name:       "shortName alias",
			payload:    `{"shortName":"butco","radioId":"500","eventType":"call"}`,
			wantSystem: "butco",
			wantRadio:  "500",
		},
		{
			name:       "systemShortName wins over shortName",
			payload:    `{"shortName":"butco","systemShortName":"hamco","radioId":"500","eventType":"on"}`,
			wantSystem: "hamco",
			wantRadio:  "500",
		},
		{
			name:       "shortName wins over system",
			payload:    `{"system":"old","shortName":"hamco","radioId":"500","eventType":"off"}`,
			wantSystem: "hamco",
			wantRadio:  "500",
		},
		{
			name:       "legacy radioID casing",
			payload:    `{"system":"hamco","radioID":"777","eventType":"call"}`,
			wantSystem: "hamco",
			wantRadio:  "777",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := UnmarshalEvent([]byte(tt.payload))
			if err != nil {
				t.Fatalf("UnmarshalEvent: %v", err)
			}
			if e.System != tt.wantSystem {
				t.Errorf("System = %q, want %q", e.System, tt.wantSystem)
			}
			if e.RadioID != tt.wantRadio {
				t.Errorf("RadioID = %q, want %q", e.RadioID, tt.wantRadio)
			}
		})
	}
}

func TestDedupKey(t *testing.T) {
	a := RadioEvent{System: "hamco", RadioID: "500", EventType: EventTypeCall, TalkgroupOrSource: "101"}
	b := RadioEvent{System: "hamco", RadioID: "500", EventType: EventTypeCall, TalkgroupOrSource: "101"}
	if a.DedupKey() != b.DedupKey() {
		t.Error("identical events should share a dedup key")
	}

	c := RadioEvent{System: "hamco", RadioID: "500", EventType: EventTypeOn, TalkgroupOrSource: "101"}
	if a.DedupKey() == c.DedupKey() {
		t.Error("different event types should not share a dedup key")
	}
}

func TestSubject(t *testing.T) {
	e := RadioEvent{System: "hamco", TalkgroupOrSource: "101"}
	if got := e.Subject(); got != "radio.event.hamco.101" {
		t.Errorf("Subject() = %q", got)
	}

	if got := SubjectForTalkgroup("101"); got != "radio.event.*.101" {
		t.Errorf("SubjectForTalkgroup() = %q", got)
	}
}

func TestSubjectTokenSanitizes(t *testing.T) {
	e := RadioEvent{System: "bad.name", TalkgroupOrSource: ""}
	if got := e.Subject(); got != "radio.event.bad_name.none" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 500_000_000, time.UTC)
	s := FormatTimestamp(at)
	if s != "2026-03-14T09:26:53Z" {
		t.Errorf("FormatTimestamp = %q, want whole-second UTC", s)
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if !parsed.Equal(at.Truncate(time.Second)) {
		t.Errorf("round trip = %v", parsed)
	}
}

func TestTimeZeroOnParseFailure(t *testing.T) {
	e := RadioEvent{Timestamp: "not-a-timestamp"}
	if !e.Time().IsZero() {
		t.Error("Time() should be zero for unparseable timestamp")
	}
}

func TestMarshalOmitsAbsentEnrichment(t *testing.T) {
	e := &RadioEvent{System: "hamco", RadioID: "500", EventType: EventTypeCall}
	data, err := MarshalEvent(e)
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	for _, field := range []string{"talkgroupInfo", "systemInfo", "eventId", "patchedTalkgroups"} {
		if strings.Contains(string(data), field) {
			t.Errorf("serialized event should omit %s when unset: %s", field, data)
		}
	}
}
