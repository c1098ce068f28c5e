// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package eventlog provides the append-only radio event log on NATS
// JetStream: an optional embedded server, idempotent stream setup, a
// resilient publisher, the change feed consumed by the fan-out stage,
// and bounded history reads.
package eventlog

import (
	"time"
)

// SubjectRoot is the subject prefix for all radio events. Events are
// published to radio.event.<system>.<talkgroupOrSource>.
const SubjectRoot = "radio.event.>"

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host      string
	Port      int
	StoreDir  string
	MaxMemory int64
	MaxStore  int64
}

// DefaultServerConfig returns production defaults for the embedded
// server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:      "127.0.0.1",
		Port:      4222,
		StoreDir:  "data/nats/jetstream",
		MaxMemory: 1 << 30,  // 1GB
		MaxStore:  10 << 30, // 10GB
	}
}

// StreamConfig defines the radio event stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns production stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "RADIO_EVENTS",
		Subjects:        []string{SubjectRoot},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        10 << 30, // 10GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool //nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns production defaults for the publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// ClientConfig bounds the startup connection sequence.
type ClientConfig struct {
	URL string

	// ConnectAttempts is the total attempt budget. Exhausting it is a
	// fatal startup error.
	ConnectAttempts int

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration

	// PrimaryWaitTimeout bounds the wait for JetStream to report a
	// writable primary after the connection is up.
	PrimaryWaitTimeout time.Duration

	// PrimaryPollInterval is the poll period while waiting.
	PrimaryPollInterval time.Duration
}

// DefaultClientConfig returns production defaults for startup.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:                 url,
		ConnectAttempts:     5,
		ConnectTimeout:      60 * time.Second,
		PrimaryWaitTimeout:  2 * time.Minute,
		PrimaryPollInterval: 2 * time.Second,
	}
}
