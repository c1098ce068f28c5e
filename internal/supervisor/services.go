// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package supervisor

import (
	"context"
)

// HubRunner matches the websocket hub's run loop.
type HubRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService adapts the websocket hub to suture.Service.
type HubService struct {
	hub HubRunner
}

// NewHubService wraps a hub for supervision.
func NewHubService(hub HubRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service. The hub's run loop already honors
// context cancellation and closes all clients on the way out.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string {
	return "websocket-hub"
}
