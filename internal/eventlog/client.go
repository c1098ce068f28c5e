// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/airwave/internal/logging"
)

// Connect establishes the NATS connection and JetStream context used
// by the change feed and the history reader.
//
// The attempt budget is bounded: exhausting ConnectAttempts returns an
// error the caller should treat as fatal, rather than retrying forever
// against a server that will never come up. Retries back off
// exponentially up to a 10 second cap.
func Connect(ctx context.Context, cfg ClientConfig) (*natsgo.Conn, jetstream.JetStream, error) {
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 5
	}

	var nc *natsgo.Conn

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	attempt := 0
	operation := func() error {
		attempt++
		logging.Info().
			Str("url", cfg.URL).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.ConnectAttempts).
			Msg("connecting to event log")

		conn, err := natsgo.Connect(cfg.URL,
			natsgo.Timeout(cfg.ConnectTimeout),
			natsgo.RetryOnFailedConnect(false),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return err
		}
		nc = conn
		return nil
	}

	notify := func(err error, next time.Duration) {
		logging.Warn().Err(err).Dur("retryIn", next).Msg("event log connection failed")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.ConnectAttempts-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to event log after %d attempts: %w", cfg.ConnectAttempts, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := waitForPrimary(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, nil, err
	}

	logging.Info().Str("url", nc.ConnectedUrl()).Msg("event log connected")
	return nc, js, nil
}

// waitForPrimary polls until JetStream reports a writable primary.
// Reads and writes both fail until then, so startup blocks here
// instead of surfacing a burst of errors from every subsystem.
func waitForPrimary(ctx context.Context, js jetstream.JetStream, cfg ClientConfig) error {
	if cfg.PrimaryPollInterval <= 0 {
		cfg.PrimaryPollInterval = 2 * time.Second
	}
	if cfg.PrimaryWaitTimeout <= 0 {
		cfg.PrimaryWaitTimeout = 2 * time.Minute
	}

	deadline := time.Now().Add(cfg.PrimaryWaitTimeout)
	ticker := time.NewTicker(cfg.PrimaryPollInterval)
	defer ticker.Stop()

	for {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.PrimaryPollInterval)
		_, err := js.AccountInfo(probeCtx)
		cancel()
		if err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("JetStream primary not available within %s: %w", cfg.PrimaryWaitTimeout, err)
		}

		logging.Debug().Err(err).Msg("waiting for JetStream primary")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
