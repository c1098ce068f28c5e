// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package sysalias maps radio system short names to human-readable
// display aliases, backed by a self-healing CSV file.
package sysalias

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
	"github.com/tomtom215/airwave/internal/models"
)

// fileHeader is the first line of the backing CSV file.
const fileHeader = "shortName,alias"

const registryName = "sysalias"

// shortNamePattern restricts system short names to characters that are
// safe in file names and NATS subject tokens.
var shortNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Registry holds the short-name to alias table. GetAlias never fails:
// a missing entry falls back to a generated default so callers always
// have something displayable.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]string
	path    string

	// saveMu serializes writes to the backing file so two concurrent
	// edits never interleave inside os.WriteFile.
	saveMu sync.Mutex
}

// NewRegistry creates a registry backed by the given CSV file. Call
// Load before first use.
func NewRegistry(path string) *Registry {
	return &Registry{
		aliases: make(map[string]string),
		path:    path,
	}
}

// Path returns the backing file path.
func (r *Registry) Path() string {
	return r.path
}

// Load reads the alias file, creating it (and its directory) when
// missing. Malformed rows and invalid short names are skipped with a
// log line; only an unusable file aborts the load.
func (r *Registry) Load() error {
	if err := r.ensureFile(); err != nil {
		return err
	}

	content, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read alias file: %w", err)
	}

	loaded := make(map[string]string)
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || i == 0 && strings.EqualFold(line, fileHeader) {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			logging.Warn().Str("line", line).Msg("skipping malformed alias row")
			continue
		}
		shortName := strings.TrimSpace(parts[0])
		alias := strings.TrimSpace(parts[1])
		if shortName == "" || alias == "" {
			continue
		}
		if !shortNamePattern.MatchString(shortName) {
			logging.Warn().Str("shortName", shortName).Msg("skipping invalid system short name")
			continue
		}
		loaded[shortName] = alias
	}

	r.mu.Lock()
	r.aliases = loaded
	r.mu.Unlock()

	logging.Info().Int("count", len(loaded)).Msg("loaded system aliases")
	return nil
}

// ensureFile creates the directory and an empty header-only file when
// the backing file does not exist.
func (r *Registry) ensureFile() error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create alias directory: %w", err)
	}
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		logging.Info().Str("file", r.path).Msg("creating system alias file")
		if err := os.WriteFile(r.path, []byte(fileHeader+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to create alias file: %w", err)
		}
	}
	return nil
}

// GetAlias resolves a short name to its display alias. Never fails:
// unrecorded names get a generated default.
func (r *Registry) GetAlias(shortName string) string {
	r.mu.RLock()
	alias, ok := r.aliases[shortName]
	r.mu.RUnlock()
	if ok {
		return alias
	}
	return GenerateDefaultAlias(shortName)
}

// GenerateDefaultAlias derives a display alias from a short name:
// a trailing "co" county suffix is stripped, separator tokens are
// title-cased and joined with spaces. "butco" -> "But", "hamco" ->
// "Ham", "butler_1" -> "Butler 1".
func GenerateDefaultAlias(shortName string) string {
	trimmed := strings.TrimSuffix(shortName, "co")
	if trimmed == "" {
		trimmed = shortName
	}
	tokens := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, token := range tokens {
		tokens[i] = strings.ToUpper(token[:1]) + strings.ToLower(token[1:])
	}
	return strings.Join(tokens, " ")
}

// AddSystem records a newly observed system. When no alias is supplied
// a generated default is used. Returns true when the table changed,
// in which case it was persisted; an already-known short name is a
// no-op. Invalid short names are rejected.
func (r *Registry) AddSystem(shortName, alias string) (bool, error) {
	if !shortNamePattern.MatchString(shortName) {
		return false, &models.ValidationError{Field: "shortName", Message: fmt.Sprintf("invalid system short name %q", shortName)}
	}

	r.mu.Lock()
	if _, exists := r.aliases[shortName]; exists {
		r.mu.Unlock()
		return false, nil
	}
	if alias = strings.TrimSpace(alias); alias == "" {
		alias = GenerateDefaultAlias(shortName)
	}
	r.aliases[shortName] = alias
	r.mu.Unlock()

	logging.Info().Str("shortName", shortName).Str("alias", alias).Msg("added system alias")
	return true, r.save()
}

// UpdateAlias is an explicit edit: the alias is required, always
// persisted, and the caller should always notify subscribers.
func (r *Registry) UpdateAlias(shortName, alias string) error {
	if !shortNamePattern.MatchString(shortName) {
		return &models.ValidationError{Field: "shortName", Message: fmt.Sprintf("invalid system short name %q", shortName)}
	}
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return &models.ValidationError{Field: "alias", Message: "must not be empty"}
	}

	r.mu.Lock()
	r.aliases[shortName] = alias
	r.mu.Unlock()

	return r.save()
}

// save writes the full table back, sorted by short name so the file
// diffs cleanly under version control. Concurrent saves are serialized
// by saveMu; the later writer snapshots the later table state.
func (r *Registry) save() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	shortNames := make([]string, 0, len(r.aliases))
	for shortName := range r.aliases {
		shortNames = append(shortNames, shortName)
	}
	sort.Strings(shortNames)

	var b strings.Builder
	b.WriteString(fileHeader)
	b.WriteString("\n")
	for _, shortName := range shortNames {
		b.WriteString(shortName)
		b.WriteString(",")
		b.WriteString(r.aliases[shortName])
		b.WriteString("\n")
	}
	r.mu.RUnlock()

	if err := os.WriteFile(r.path, []byte(b.String()), 0o644); err != nil {
		metrics.RecordRegistrySaveError(registryName)
		return fmt.Errorf("failed to save alias file: %w", err)
	}
	metrics.RecordRegistrySave(registryName)
	return nil
}

// Snapshot returns a copy of the alias table.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for shortName, alias := range r.aliases {
		out[shortName] = alias
	}
	return out
}
