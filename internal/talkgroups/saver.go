// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package talkgroups

import (
	"context"
	"time"

	"github.com/tomtom215/airwave/internal/logging"
)

// Saver persists every partition on a fixed interval as a safety net
// against missed immediate saves. Implements suture.Service.
type Saver struct {
	store    *Store
	interval time.Duration
}

// NewSaver creates a periodic saver. Interval <= 0 defaults to 5m.
func NewSaver(store *Store, interval time.Duration) *Saver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Saver{store: store, interval: interval}
}

// Serve implements suture.Service. A final save runs on shutdown so
// in-flight registry state reaches disk before the process exits.
func (s *Saver) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("saving talkgroups before shutdown")
			s.store.SaveAll()
			return ctx.Err()
		case <-ticker.C:
			s.store.SaveAll()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Saver) String() string {
	return "talkgroups-saver"
}
