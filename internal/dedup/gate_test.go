// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/airwave/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGate(window time.Duration) (*Gate, *fakeClock) {
	g := NewGate(window)
	clock := newFakeClock()
	g.now = clock.now
	return g, clock
}

func event(system, radio, eventType, tg string) *models.RadioEvent {
	return &models.RadioEvent{
		System:            system,
		RadioID:           radio,
		EventType:         eventType,
		TalkgroupOrSource: tg,
	}
}

func TestGateSuppressesDuplicateWithinWindow(t *testing.T) {
	g, clock := newTestGate(5 * time.Second)
	defer g.Close()

	e := event("hamco", "500", models.EventTypeCall, "101")
	if !g.Submit(e) {
		t.Fatal("first submission should pass")
	}
	if g.Submit(e) {
		t.Error("duplicate within window should be suppressed")
	}

	clock.advance(4 * time.Second)
	if g.Submit(e) {
		t.Error("duplicate at 4s should still be suppressed")
	}
}

func TestGateAcceptsAfterWindow(t *testing.T) {
	g, clock := newTestGate(5 * time.Second)
	defer g.Close()

	e := event("hamco", "500", models.EventTypeCall, "101")
	if !g.Submit(e) {
		t.Fatal("first submission should pass")
	}

	clock.advance(5 * time.Second)
	if !g.Submit(e) {
		t.Error("submission at window boundary should pass")
	}
}

func TestGateDistinguishesKeys(t *testing.T) {
	g, _ := newTestGate(5 * time.Second)
	defer g.Close()

	if !g.Submit(event("hamco", "500", models.EventTypeCall, "101")) {
		t.Error("call event should pass")
	}
	if !g.Submit(event("hamco", "500", models.EventTypeOn, "101")) {
		t.Error("different event type should pass")
	}
	if !g.Submit(event("hamco", "501", models.EventTypeCall, "101")) {
		t.Error("different radio should pass")
	}
	if !g.Submit(event("butco", "500", models.EventTypeCall, "101")) {
		t.Error("different system should pass")
	}
}

func TestGateSuppressedSubmitDoesNotExtendWindow(t *testing.T) {
	g, clock := newTestGate(5 * time.Second)
	defer g.Close()

	e := event("hamco", "500", models.EventTypeCall, "101")
	g.Submit(e)

	// Suppressed retries must not refresh the deadline: the window is
	// measured from the accepted event, not the last attempt.
	clock.advance(3 * time.Second)
	g.Submit(e)
	clock.advance(2 * time.Second)
	if !g.Submit(e) {
		t.Error("window should expire 5s after the accepted event")
	}
}

func TestGateSweepBoundsMemory(t *testing.T) {
	g, clock := newTestGate(5 * time.Second)
	defer g.Close()

	for _, radio := range []string{"500", "501", "502"} {
		g.Submit(event("hamco", radio, models.EventTypeCall, "101"))
	}
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}

	clock.advance(10 * time.Second)
	g.sweep()
	if g.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", g.Len())
	}
}

func TestGateZeroWindowUsesDefault(t *testing.T) {
	g := NewGate(0)
	defer g.Close()
	if g.window != DefaultWindow {
		t.Errorf("window = %v, want %v", g.window, DefaultWindow)
	}
}

func TestGateConcurrentSubmit(t *testing.T) {
	g, _ := newTestGate(5 * time.Second)
	defer g.Close()

	e := event("hamco", "500", models.EventTypeCall, "101")

	var wg sync.WaitGroup
	accepted := make(chan struct{}, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Submit(e) {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	count := 0
	for range accepted {
		count++
	}
	if count != 1 {
		t.Errorf("accepted = %d concurrent submissions, want exactly 1", count)
	}
}
