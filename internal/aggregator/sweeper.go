// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package aggregator

import (
	"context"
	"time"
)

// Sweeper periodically expires stale glows and purges aged-out call
// timestamps. Implements suture.Service.
type Sweeper struct {
	agg      *Aggregator
	interval time.Duration
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one
// second.
func NewSweeper(agg *Aggregator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{agg: agg, interval: interval}
}

// Serve runs the sweep loop until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.agg.Sweep()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "aggregator-sweeper"
}
