// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"

	"github.com/klairvoyant/raven-tui/internal/session"
)

func update(phase session.Phase, chatID string) session.Update {
	return session.Update{ChatID: chatID, Phase: phase}
}

func TestThrottleFirstSnapshotAvailableImmediately(t *testing.T) {
	th := NewStreamThrottle()
	th.Store(update(session.PhaseStreaming, "c1"))

	u, ok := th.Take()
	if !ok {
		t.Fatal("expected first snapshot to be available")
	}
	if u.ChatID != "c1" {
		t.Errorf("ChatID = %q, want c1", u.ChatID)
	}
	if _, ok := th.Take(); ok {
		t.Error("second Take without Store should return nothing")
	}
}

func TestThrottleCoalescesWithinFrame(t *testing.T) {
	th := NewStreamThrottle()
	th.Store(update(session.PhaseStreaming, "first"))
	if _, ok := th.Take(); !ok {
		t.Fatal("expected first take to succeed")
	}

	// Rapid fragments inside one frame window: only the latest survives,
	// and it is held back until the frame interval elapses.
	th.Store(update(session.PhaseStreaming, "second"))
	th.Store(update(session.PhaseStreaming, "third"))

	if _, ok := th.Take(); ok {
		t.Fatal("take inside the frame window should be deferred")
	}
	if !th.Pending() {
		t.Fatal("a deferred snapshot should report pending")
	}

	time.Sleep(frameInterval + 10*time.Millisecond)
	u, ok := th.Take()
	if !ok {
		t.Fatal("expected deferred snapshot after the frame interval")
	}
	if u.ChatID != "third" {
		t.Errorf("ChatID = %q, want third (latest wins)", u.ChatID)
	}
}

func TestThrottleSettledBypassesInterval(t *testing.T) {
	th := NewStreamThrottle()
	th.Store(update(session.PhaseStreaming, "c1"))
	if _, ok := th.Take(); !ok {
		t.Fatal("expected first take to succeed")
	}

	// A settled snapshot must not wait out the frame window: the final
	// message state should paint immediately.
	th.Store(update(session.PhaseIdle, "c1"))
	u, ok := th.Take()
	if !ok {
		t.Fatal("settled snapshot should bypass the frame interval")
	}
	if u.Phase != session.PhaseIdle {
		t.Errorf("Phase = %v, want PhaseIdle", u.Phase)
	}
}

func TestThrottlePendingFalseWhenDrained(t *testing.T) {
	th := NewStreamThrottle()
	if th.Pending() {
		t.Error("new throttle should not be pending")
	}
	th.Store(update(session.PhaseIdle, "c1"))
	if !th.Pending() {
		t.Error("stored snapshot should be pending")
	}
	if _, ok := th.Take(); !ok {
		t.Fatal("expected take to succeed")
	}
	if th.Pending() {
		t.Error("drained throttle should not be pending")
	}
}
