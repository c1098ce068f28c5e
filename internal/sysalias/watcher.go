// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package sysalias

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
)

// Notifier receives registry-change control notifications for fan-out
// to subscribers. Satisfied by *websocket.Hub.
type Notifier interface {
	NotifyControl(messageType string)
}

// NotifyAliasesUpdated is the control message emitted after the alias
// table changed, either by edit or by external file modification.
const NotifyAliasesUpdated = "system_aliases_updated"

// Watcher reloads the alias registry when its backing file changes on
// disk. The parent directory is watched so a deleted-and-recreated
// file is picked up too. Implements suture.Service.
type Watcher struct {
	registry *Registry
	notifier Notifier
}

// NewWatcher creates a watcher for the registry's backing file.
func NewWatcher(registry *Registry, notifier Notifier) *Watcher {
	return &Watcher{registry: registry, notifier: notifier}
}

// Serve implements suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.registry.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Base(w.registry.Path())
	logging.Info().Str("file", w.registry.Path()).Msg("watching system alias file")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("sysalias watcher event channel closed")
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logging.Info().Msg("system alias file changed, reloading")
			if err := w.registry.Load(); err != nil {
				logging.Err(err).Msg("failed to reload system aliases")
				continue
			}
			metrics.RecordRegistryReload(registryName)
			if w.notifier != nil {
				w.notifier.NotifyControl(NotifyAliasesUpdated)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("sysalias watcher error channel closed")
			}
			logging.Err(err).Msg("sysalias watcher error")
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Watcher) String() string {
	return "sysalias-watcher"
}
