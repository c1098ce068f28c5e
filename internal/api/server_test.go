// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	shutdowns   atomic.Int32
	listenDone  chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{listenDone: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.listenDone
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	if m.shutdowns.Add(1) == 1 {
		close(m.listenDone)
	}
	return m.shutdownErr
}

func TestServerServiceGracefulShutdown(t *testing.T) {
	mock := newMockHTTPServer()
	svc := &ServerService{server: mock, addr: "127.0.0.1:0", shutdownTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if mock.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", mock.shutdowns.Load())
	}
}

func TestServerServiceListenFailure(t *testing.T) {
	mock := newMockHTTPServer()
	mock.listenErr = errors.New("address already in use")
	svc := &ServerService{server: mock, addr: "127.0.0.1:0", shutdownTimeout: time.Second}

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, mock.listenErr) {
		t.Errorf("Serve returned %v, want wrapped listen error", err)
	}
}

func TestServerServiceShutdownError(t *testing.T) {
	mock := newMockHTTPServer()
	mock.shutdownErr = errors.New("drain timeout")
	svc := &ServerService{server: mock, addr: "127.0.0.1:0", shutdownTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil || !errors.Is(err, mock.shutdownErr) {
			t.Errorf("Serve returned %v, want wrapped shutdown error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNewServerServiceDefaults(t *testing.T) {
	svc := NewServerService("127.0.0.1:0", http.NewServeMux(), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s default", svc.shutdownTimeout)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}
