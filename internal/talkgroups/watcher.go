// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package talkgroups

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
)

// Notifier receives registry-change control notifications for fan-out
// to subscribers. Satisfied by *websocket.Hub.
type Notifier interface {
	NotifyControl(messageType string)
}

// NotifyTalkgroupsReloaded is the control message emitted after a
// partition file changed on disk and was reloaded.
const NotifyTalkgroupsReloaded = "talkgroups_reloaded"

// Watcher observes the talkgroups directory and reloads a partition
// file when it is modified externally. Implements suture.Service.
type Watcher struct {
	store    *Store
	notifier Notifier
}

// NewWatcher creates a watcher for the store's directory.
func NewWatcher(store *Store, notifier Notifier) *Watcher {
	return &Watcher{store: store, notifier: notifier}
}

// Serve implements suture.Service. It blocks until the context is
// canceled, reloading individual CSV files as they change.
func (w *Watcher) Serve(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.store.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.store.dir, err)
	}

	logging.Info().Str("dir", w.store.dir).Msg("watching talkgroups directory")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("talkgroups watcher event channel closed")
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".csv") {
				continue
			}
			w.reload(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("talkgroups watcher error channel closed")
			}
			logging.Err(err).Msg("talkgroups watcher error")
		}
	}
}

// reload reloads just the changed file and notifies subscribers. The
// read is serialized against saves of the same partition.
func (w *Watcher) reload(path string) {
	logging.Info().Str("file", filepath.Base(path)).Msg("talkgroup file changed, reloading")
	if err := w.store.ReloadFile(path); err != nil {
		logging.Err(err).Str("file", path).Msg("failed to reload talkgroup file")
		return
	}
	metrics.RecordRegistryReload(registryName)
	if w.notifier != nil {
		w.notifier.NotifyControl(NotifyTalkgroupsReloaded)
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Watcher) String() string {
	return "talkgroups-watcher"
}
