// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file implements thread-safe single-flight tracking so that starting a
// new submission (or switching chats) cancels the prior stream synchronously,
// with a generation counter that keeps stale fragments from ever being applied.
package session

import (
	"context"
	"sync"
)

// =============================================================================
// FLIGHT TRACKING (THREAD-SAFE)
// =============================================================================

// flightTracker owns the cancellation of the one in-flight generation per
// conversation. IMPORTANT: must be held as a pointer (*flightTracker) so the
// mutex is never copied.
type flightTracker struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	gen        uint64
}

// newFlightTracker creates a new flightTracker pointer.
// Always use this constructor to ensure proper initialization.
func newFlightTracker() *flightTracker {
	return &flightTracker{}
}

// begin cancels any prior flight, advances the generation, and returns a
// fresh context for the new flight. The cancellation of the prior flight is
// synchronous with respect to starting the new one: after begin returns there
// is no window where two flights can both apply fragments.
func (f *flightTracker) begin(parent context.Context) (context.Context, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelFunc != nil {
		f.cancelFunc()
	}
	f.gen++
	ctx, cancel := context.WithCancel(parent)
	f.cancelFunc = cancel
	return ctx, f.gen
}

// supersede cancels any prior flight and advances the generation without
// starting a new one. Used when switching chats: any stale fragments from the
// old chat's stream fail the generation check and are dropped.
func (f *flightTracker) supersede() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelFunc != nil {
		f.cancelFunc()
		f.cancelFunc = nil
	}
	f.gen++
}

// cancelCurrent cancels the in-flight generation without advancing it.
// The flight settles through its normal completion path, which classifies the
// resulting context error as a benign cancellation.
// Safe to call multiple times or with no flight in progress.
func (f *flightTracker) cancelCurrent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelFunc != nil {
		f.cancelFunc()
		f.cancelFunc = nil
	}
}

// current returns the active generation number.
func (f *flightTracker) current() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}
