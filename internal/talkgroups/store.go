// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package talkgroups implements the file-backed talkgroup reference
// store: CSV-loaded metadata, auto-provisioning of unknown ids observed
// in live traffic, write-back persistence, and hot reload on external
// file edits.
package talkgroups

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
	"github.com/tomtom215/airwave/internal/models"
)

// csvHeader is the trunk-recorder compatible header written on save.
const csvHeader = "Decimal,Hex,Alpha Tag,Mode,Description,Tag,Category"

// DefaultFileName is the global partition file inside the talkgroups
// directory. Per-system partitions are <shortName>-talkgroups.csv.
const DefaultFileName = "talkgroups.csv"

const registryName = "talkgroups"

// Record is the reference metadata for one talkgroup, keyed by its
// decimal id. ShortName is empty for records from the global partition.
type Record struct {
	Hex         string `json:"hex"`
	AlphaTag    string `json:"alphaTag"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
	Category    string `json:"category"`
	ShortName   string `json:"shortName,omitempty"`
}

// Snapshot is the full registry view returned to clients.
type Snapshot struct {
	Talkgroups        map[string]Record `json:"talkgroups"`
	UnknownTalkgroups []string          `json:"unknownTalkgroups"`
}

// System pairs a short name with its display alias.
type System struct {
	ShortName   string `json:"shortName"`
	DisplayName string `json:"displayName"`
}

// AliasResolver resolves a system short name to its display alias.
// Satisfied by sysalias.Registry.
type AliasResolver interface {
	GetAlias(shortName string) string
}

// Store holds talkgroup records loaded from the talkgroups directory.
//
// A single keyspace of decimal ids is shared by all partitions; the
// owning system is an attribute of the record. Saves for the same
// partition file are serialized by a per-partition mutex so two
// in-flight writes never interleave.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*Record
	unknown  map[string]struct{}
	systems  map[string]struct{}
	dir      string
	resolver AliasResolver

	saveMu sync.Mutex
	saves  map[string]*sync.Mutex
}

// NewStore creates a store over the given talkgroups directory. Call
// Load before first use.
func NewStore(dir string, resolver AliasResolver) *Store {
	return &Store{
		records:  make(map[string]*Record),
		unknown:  make(map[string]struct{}),
		systems:  make(map[string]struct{}),
		dir:      dir,
		resolver: resolver,
		saves:    make(map[string]*sync.Mutex),
	}
}

// Load scans the talkgroups directory: the global talkgroups.csv plus
// every <system>-talkgroups.csv. The directory and the global file are
// created when missing. A file that fails to parse is logged and
// skipped; Load only fails when the directory itself is unusable.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create talkgroups directory: %w", err)
	}

	defaultFile := filepath.Join(s.dir, DefaultFileName)
	if _, err := os.Stat(defaultFile); os.IsNotExist(err) {
		logging.Info().Str("file", defaultFile).Msg("creating default talkgroups file")
		if err := os.WriteFile(defaultFile, []byte(csvHeader+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to create default talkgroups file: %w", err)
		}
	}

	if err := s.LoadFile(defaultFile); err != nil {
		logging.Err(err).Str("file", defaultFile).Msg("failed to load talkgroup file")
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read talkgroups directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "-talkgroups.csv") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := s.LoadFile(path); err != nil {
			logging.Err(err).Str("file", path).Msg("failed to load talkgroup file")
		}
	}

	return nil
}

// LoadFile parses one partition file into the store. The header row is
// located by content sniffing, so leading comments or preamble lines
// do not break the parse. Rows replace existing records for the same
// decimal id (last write wins).
func (s *Store) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	shortName := systemFromFileName(filepath.Base(path))

	lines := make([]string, 0, 64)
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
	}

	headerIndex := findHeader(lines)
	if headerIndex == -1 {
		return fmt.Errorf("%s: no header row with Decimal and Alpha Tag columns", path)
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIndex+1:], "\n")))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if shortName != "" {
		s.systems[shortName] = struct{}{}
	}

	loaded := 0
	for _, row := range rows {
		decimal := strings.TrimSpace(field(row, 0))
		if decimal == "" {
			continue
		}
		rec := &Record{
			Hex:         field(row, 1),
			AlphaTag:    field(row, 2),
			Mode:        field(row, 3),
			Description: field(row, 4),
			Tag:         field(row, 5),
			Category:    field(row, 6),
			ShortName:   shortName,
		}
		if rec.AlphaTag == "" {
			rec.AlphaTag = "Talkgroup " + decimal
		}
		if rec.Tag == "" {
			rec.Tag = "Unknown"
		}
		if rec.Category == "" {
			rec.Category = "Unknown"
		}
		s.records[decimal] = rec
		loaded++
	}

	logging.Info().Str("file", path).Int("count", loaded).Msg("loaded talkgroups")
	return nil
}

// ReloadFile re-reads one partition file, holding that partition's
// save lock so a watch-triggered reload never observes a partially
// written file from an in-flight Save.
func (s *Store) ReloadFile(path string) error {
	lock := s.partitionLock(path)
	lock.Lock()
	defer lock.Unlock()
	return s.LoadFile(path)
}

// findHeader locates the header row by case-insensitive content
// sniffing rather than assuming row 0.
func findHeader(lines []string) int {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "decimal") &&
			(strings.Contains(lower, "alpha tag") || strings.Contains(lower, "alphatag")) {
			return i
		}
	}
	return -1
}

// systemFromFileName derives the owning system from a partition file
// name: "hamco-talkgroups.csv" -> "hamco", "talkgroups.csv" -> "".
func systemFromFileName(name string) string {
	if name == DefaultFileName {
		return ""
	}
	base := strings.TrimSuffix(name, "-talkgroups.csv")
	if base == name {
		return ""
	}
	// A system short name never contains '-' separators beyond its own;
	// the original data uses the prefix before the first dash.
	if idx := strings.Index(base, "-"); idx > 0 {
		return base[:idx]
	}
	return base
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Get returns the record for a decimal id, or nil when absent.
func (s *Store) Get(decimal string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[decimal]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Upsert applies an explicit edit for one decimal id. AlphaTag is
// required; an edit always clears the unknown marker and takes
// precedence over auto-provisioned placeholders. The owning system of
// an existing record is preserved unless the edit supplies one.
func (s *Store) Upsert(decimal string, rec Record) error {
	if decimal == "" {
		return &models.ValidationError{Field: "decimal", Message: "required"}
	}
	if strings.TrimSpace(rec.AlphaTag) == "" {
		return &models.ValidationError{Field: "alphaTag", Message: "required"}
	}

	if rec.Tag == "" {
		rec.Tag = "Unknown"
	}
	if rec.Category == "" {
		rec.Category = "Unknown"
	}

	s.mu.Lock()
	if existing, ok := s.records[decimal]; ok && rec.ShortName == "" {
		rec.ShortName = existing.ShortName
	}
	s.records[decimal] = &rec
	delete(s.unknown, decimal)
	metrics.UnknownTalkgroups.Set(float64(len(s.unknown)))
	s.mu.Unlock()

	return nil
}

// RegisterUnknown records an id observed in live traffic that has no
// registry record. Idempotent: only the first observation of an id
// reports a change, and only a change triggers the immediate partition
// save. The system short name is always tracked.
func (s *Store) RegisterUnknown(system, decimal string) bool {
	s.mu.Lock()
	changed := false
	if decimal != "" {
		if _, known := s.records[decimal]; !known {
			if _, seen := s.unknown[decimal]; !seen {
				s.unknown[decimal] = struct{}{}
				changed = true
			}
		}
	}
	if system != "" {
		s.systems[system] = struct{}{}
	}
	metrics.UnknownTalkgroups.Set(float64(len(s.unknown)))
	s.mu.Unlock()

	if changed {
		logging.Info().Str("talkgroup", decimal).Str("system", system).Msg("registered unknown talkgroup")
		if err := s.Save(system); err != nil {
			logging.Err(err).Str("system", system).Msg("immediate talkgroup save failed")
		}
	}
	return changed
}

// partitionFile returns the file a system's records persist to. A
// per-system file is used only when it already exists; otherwise
// records fall back to the global file.
func (s *Store) partitionFile(shortName string) string {
	if shortName == "" {
		return filepath.Join(s.dir, DefaultFileName)
	}
	systemFile := filepath.Join(s.dir, shortName+"-talkgroups.csv")
	if _, err := os.Stat(systemFile); err == nil {
		return systemFile
	}
	return filepath.Join(s.dir, DefaultFileName)
}

// Save persists one partition: known records owned by the system
// first, then still-unresolved unknown ids with placeholder metadata.
// All fields are quoted. Saves for the same partition file are
// serialized; concurrent callers block rather than interleave.
func (s *Store) Save(shortName string) error {
	path := s.partitionFile(shortName)

	lock := s.partitionLock(path)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	decimals := make([]string, 0, len(s.records))
	for decimal, rec := range s.records {
		if rec.ShortName == shortName || (rec.ShortName == "" && shortName == "") {
			decimals = append(decimals, decimal)
		}
	}
	sort.Strings(decimals)

	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteString("\n")

	count := 0
	written := make(map[string]struct{}, len(decimals))
	for _, decimal := range decimals {
		rec := s.records[decimal]
		writeRow(&b, decimal, rec.Hex, orDefault(rec.AlphaTag, "Talkgroup "+decimal),
			orDefault(rec.Mode, "D"), rec.Description,
			orDefault(rec.Tag, "Unknown"), orDefault(rec.Category, "Unknown"))
		written[decimal] = struct{}{}
		count++
	}

	unknowns := make([]string, 0, len(s.unknown))
	for decimal := range s.unknown {
		if _, ok := written[decimal]; !ok {
			unknowns = append(unknowns, decimal)
		}
	}
	sort.Strings(unknowns)
	for _, decimal := range unknowns {
		writeRow(&b, decimal, "", "Talkgroup "+decimal, "D", "", "Unknown", "Unknown")
		count++
	}
	s.mu.RUnlock()

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		metrics.RecordRegistrySaveError(registryName)
		return fmt.Errorf("failed to save talkgroups to %s: %w", path, err)
	}

	metrics.RecordRegistrySave(registryName)
	logging.Debug().Str("file", path).Int("count", count).Msg("saved talkgroups")
	return nil
}

// SaveAll persists every known partition plus the global one. Used by
// the periodic saver as a safety net against missed immediate saves.
func (s *Store) SaveAll() {
	s.mu.RLock()
	systems := make([]string, 0, len(s.systems)+1)
	systems = append(systems, "")
	for system := range s.systems {
		systems = append(systems, system)
	}
	s.mu.RUnlock()

	for _, system := range systems {
		if err := s.Save(system); err != nil {
			logging.Err(err).Str("system", system).Msg("periodic talkgroup save failed")
		}
	}
}

func (s *Store) partitionLock(path string) *sync.Mutex {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	lock, ok := s.saves[path]
	if !ok {
		lock = &sync.Mutex{}
		s.saves[path] = lock
	}
	return lock
}

func writeRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\"")
		b.WriteString(strings.ReplaceAll(f, "\"", "\"\""))
		b.WriteString("\"")
	}
	b.WriteString("\n")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Snapshot returns the full registry view: every record plus the list
// of unresolved unknown ids.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	talkgroups := make(map[string]Record, len(s.records))
	for decimal, rec := range s.records {
		talkgroups[decimal] = *rec
	}
	unknowns := make([]string, 0, len(s.unknown))
	for decimal := range s.unknown {
		unknowns = append(unknowns, decimal)
	}
	sort.Strings(unknowns)

	return Snapshot{Talkgroups: talkgroups, UnknownTalkgroups: unknowns}
}

// KnownSystems lists every system observed from partition files or
// live traffic, with display aliases resolved.
func (s *Store) KnownSystems() []System {
	s.mu.RLock()
	shortNames := make([]string, 0, len(s.systems))
	for system := range s.systems {
		shortNames = append(shortNames, system)
	}
	s.mu.RUnlock()

	sort.Strings(shortNames)
	systems := make([]System, 0, len(shortNames))
	for _, shortName := range shortNames {
		display := shortName
		if s.resolver != nil {
			display = s.resolver.GetAlias(shortName)
		}
		systems = append(systems, System{ShortName: shortName, DisplayName: display})
	}
	return systems
}

// HasSystem reports whether a system short name has been observed.
func (s *Store) HasSystem(shortName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.systems[shortName]
	return ok
}

// Clear drops all records and unknown ids. Used with Load for a forced
// full reload.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
	s.unknown = make(map[string]struct{})
	metrics.UnknownTalkgroups.Set(0)
}

// TalkgroupInfo builds the enrichment payload for a decimal id, or nil
// when the id is unknown.
func (s *Store) TalkgroupInfo(decimal string) *models.TalkgroupInfo {
	rec := s.Get(decimal)
	if rec == nil {
		return nil
	}
	return &models.TalkgroupInfo{
		Hex:         rec.Hex,
		AlphaTag:    rec.AlphaTag,
		Mode:        rec.Mode,
		Description: rec.Description,
		Tag:         rec.Tag,
		Category:    rec.Category,
		ShortName:   rec.ShortName,
	}
}
