// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package websocket implements the fan-out hub: enriched radio events
// and registry-change control messages broadcast to every subscriber.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/airwave/internal/logging"
	"github.com/tomtom215/airwave/internal/metrics"
	"github.com/tomtom215/airwave/internal/models"
)

// Message types for WebSocket communication. Data messages carry radio
// events; control messages signal subscribers to re-fetch a registry
// snapshot rather than carrying the payload inline.
const (
	MessageTypeRadioEvent         = "radio_event"
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
	MessageTypeTalkgroupsReloaded = "talkgroups_reloaded"
	MessageTypeSystemsUpdated     = "systems_updated"
	MessageTypeAliasesUpdated     = "system_aliases_updated"
)

// Message represents a WebSocket message.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them. Delivery is at-least-once per subscriber and preserves the
// order messages were handed to the hub; a subscriber whose send
// buffer is full is dropped rather than allowed to stall the rest.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is canceled, then
// closes all clients and returns ctx.Err(). Designed for suture
// supervision.
//
// Selection is priority-based rather than a single select: shutdown
// first, then client lifecycle, then broadcasts. Go's select picks
// randomly among ready channels; the explicit ordering keeps client
// state consistent before any message is processed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check)
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: broadcast or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// broadcastToClients sends a message to all connected clients in
// client-id order. The stable iteration order keeps delivery
// reproducible in tests; map iteration order would not be.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Send buffer full: the client is too slow, drop it.
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(toRemove)).Msg("dropped slow websocket clients")
	}
}

// shutdown closes all clients in id order and logs the reason.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		AnErr("reason", ctx.Err()).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// BroadcastEvent sends an enriched radio event to all subscribers.
// Non-blocking: if the hub's inbox is full the event is dropped with a
// warning rather than stalling the change consumer.
func (h *Hub) BroadcastEvent(event *models.RadioEvent) {
	message := Message{
		Type: MessageTypeRadioEvent,
		Data: event,
	}

	select {
	case h.broadcast <- message:
		metrics.RecordBroadcast(MessageTypeRadioEvent)
	default:
		logging.Warn().Msg("broadcast channel full, dropping radio event")
	}
}

// NotifyControl sends a registry-change control message. Subscribers
// re-fetch the corresponding snapshot on receipt.
func (h *Hub) NotifyControl(messageType string) {
	message := Message{
		Type: messageType,
		Data: nil,
	}

	select {
	case h.broadcast <- message:
		metrics.RecordBroadcast(messageType)
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping control message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
