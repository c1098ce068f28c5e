// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package talkgroups

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type staticResolver map[string]string

func (r staticResolver) GetAlias(shortName string) string {
	if alias, ok := r[shortName]; ok {
		return alias
	}
	return shortName
}

func writeFileT(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("default file not created: %v", err)
	}
	if !strings.HasPrefix(string(data), "Decimal,Hex,Alpha Tag") {
		t.Errorf("default file missing header: %q", string(data))
	}
}

func TestLoadHeaderSniffing(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"# exported by trunk-recorder",
		"",
		"decimal,hex,alphatag,mode,description,tag,category",
		`"101","65","Dispatch","D","County dispatch","Dispatch","Public Safety"`,
		`"102","66","Fire Ops","D","Fireground ops","Fire","Public Safety"`,
	}, "\n")
	writeFileT(t, filepath.Join(dir, "talkgroups.csv"), content)

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := s.Get("101")
	if rec == nil {
		t.Fatal("talkgroup 101 not loaded")
	}
	if rec.AlphaTag != "Dispatch" {
		t.Errorf("AlphaTag = %q, want Dispatch", rec.AlphaTag)
	}
	if rec.Category != "Public Safety" {
		t.Errorf("Category = %q", rec.Category)
	}
	if rec.ShortName != "" {
		t.Errorf("global partition record has ShortName %q", rec.ShortName)
	}
}

func TestLoadSystemPartition(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "hamco-talkgroups.csv"),
		"Decimal,Hex,Alpha Tag,Mode,Description,Tag,Category\n"+
			`"201","c9","Ham North","D","","Ham","Amateur"`+"\n")

	s := NewStore(dir, staticResolver{"hamco": "Ham"})
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := s.Get("201")
	if rec == nil {
		t.Fatal("talkgroup 201 not loaded")
	}
	if rec.ShortName != "hamco" {
		t.Errorf("ShortName = %q, want hamco", rec.ShortName)
	}

	systems := s.KnownSystems()
	if len(systems) != 1 || systems[0].ShortName != "hamco" || systems[0].DisplayName != "Ham" {
		t.Errorf("KnownSystems = %+v", systems)
	}
}

func TestLoadBadFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "broken-talkgroups.csv"), "no header here\njust noise\n")
	writeFileT(t, filepath.Join(dir, "talkgroups.csv"),
		"Decimal,Hex,Alpha Tag,Mode,Description,Tag,Category\n"+`"1","","One","D","","",""`+"\n")

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load should tolerate a bad partition file: %v", err)
	}
	if s.Get("1") == nil {
		t.Error("good file not loaded alongside bad one")
	}
}

func TestUpsertRequiresAlphaTag(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	if err := s.Upsert("300", Record{AlphaTag: "  "}); err == nil {
		t.Error("Upsert with blank alphaTag should fail")
	}
	if err := s.Upsert("300", Record{AlphaTag: "Ops"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec := s.Get("300")
	if rec == nil || rec.AlphaTag != "Ops" {
		t.Fatalf("Get after Upsert = %+v", rec)
	}
	if rec.Tag != "Unknown" || rec.Category != "Unknown" {
		t.Errorf("defaults not applied: %+v", rec)
	}
}

func TestUpsertPreservesShortName(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "hamco-talkgroups.csv"),
		"Decimal,Hex,Alpha Tag,Mode,Description,Tag,Category\n"+`"201","","Old","D","","",""`+"\n")
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Upsert("201", Record{AlphaTag: "New Name"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec := s.Get("201")
	if rec.ShortName != "hamco" {
		t.Errorf("ShortName lost on edit: %q", rec.ShortName)
	}
}

func TestRegisterUnknownIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.RegisterUnknown("", "999") {
		t.Error("first RegisterUnknown should report a change")
	}
	if s.RegisterUnknown("", "999") {
		t.Error("second RegisterUnknown should be a no-op")
	}

	snap := s.Snapshot()
	if len(snap.UnknownTalkgroups) != 1 || snap.UnknownTalkgroups[0] != "999" {
		t.Errorf("UnknownTalkgroups = %v", snap.UnknownTalkgroups)
	}

	// First observation writes the placeholder back immediately.
	data, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("read default file: %v", err)
	}
	if !strings.Contains(string(data), `"999","","Talkgroup 999","D","","Unknown","Unknown"`) {
		t.Errorf("placeholder row missing:\n%s", data)
	}
}

func TestRegisterUnknownKnownIDIsNoop(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if err := s.Upsert("42", Record{AlphaTag: "Known"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.RegisterUnknown("", "42") {
		t.Error("RegisterUnknown for a known id should report no change")
	}
}

func TestUpsertClearsUnknown(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.RegisterUnknown("", "555")

	if err := s.Upsert("555", Record{AlphaTag: "Resolved"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.UnknownTalkgroups) != 0 {
		t.Errorf("unknown marker not cleared: %v", snap.UnknownTalkgroups)
	}
	if snap.Talkgroups["555"].AlphaTag != "Resolved" {
		t.Errorf("edit not applied: %+v", snap.Talkgroups["555"])
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Upsert("10", Record{Hex: "a", AlphaTag: `Say "hi"`, Mode: "D", Description: "desc, with comma", Tag: "Fire", Category: "Safety"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Save(""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewStore(dir, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	rec := reloaded.Get("10")
	if rec == nil {
		t.Fatal("record lost on round trip")
	}
	if rec.AlphaTag != `Say "hi"` || rec.Description != "desc, with comma" {
		t.Errorf("round trip mangled record: %+v", rec)
	}
}

func TestSaveWritesKnownBeforeUnknown(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.RegisterUnknown("", "900")
	if err := s.Upsert("100", Record{AlphaTag: "Known"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Save(""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	known := strings.Index(string(data), `"100"`)
	unknown := strings.Index(string(data), `"900"`)
	if known == -1 || unknown == -1 {
		t.Fatalf("rows missing:\n%s", data)
	}
	if known > unknown {
		t.Error("known records must precede unknown placeholders")
	}
}

// A watch-triggered reload must not read a partition file while a save
// of the same file is in flight.
func TestReloadFileWaitsForSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeFileT(t, path,
		"Decimal,Hex,Alpha Tag,Mode,Description,Tag,Category\n"+`"301","","Ops","D","","",""`+"\n")

	s := NewStore(dir, nil)

	lock := s.partitionLock(path)
	lock.Lock()

	done := make(chan error, 1)
	go func() { done <- s.ReloadFile(path) }()

	select {
	case <-done:
		t.Fatal("ReloadFile proceeded while the partition save lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	lock.Unlock()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ReloadFile: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReloadFile did not complete after the lock was released")
	}

	if s.Get("301") == nil {
		t.Error("record not loaded by ReloadFile")
	}
}

func TestClearAndReload(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "talkgroups.csv"),
		"Decimal,Hex,Alpha Tag,Mode,Description,Tag,Category\n"+`"1","","One","D","","",""`+"\n")
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.RegisterUnknown("", "2")

	s.Clear()
	if s.Get("1") != nil {
		t.Error("Clear left records behind")
	}
	if err := s.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s.Get("1") == nil {
		t.Error("reload after Clear lost file-backed record")
	}
	if len(s.Snapshot().UnknownTalkgroups) != 0 {
		t.Error("Clear should drop unknown ids")
	}
}

func TestSystemFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"talkgroups.csv", ""},
		{"hamco-talkgroups.csv", "hamco"},
		{"butler_1-talkgroups.csv", "butler_1"},
		{"other.csv", ""},
	}
	for _, tt := range tests {
		if got := systemFromFileName(tt.name); got != tt.want {
			t.Errorf("systemFromFileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTalkgroupInfo(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if s.TalkgroupInfo("404") != nil {
		t.Error("TalkgroupInfo for unknown id should be nil")
	}
	if err := s.Upsert("7", Record{AlphaTag: "Tac 7", Tag: "Tac", Category: "Ops"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	info := s.TalkgroupInfo("7")
	if info == nil || info.AlphaTag != "Tac 7" || info.Tag != "Tac" {
		t.Errorf("TalkgroupInfo = %+v", info)
	}
}
