// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/klairvoyant/raven-tui/internal/session"
)

// =============================================================================
// STREAM THROTTLE
// =============================================================================

// frameInterval caps streaming re-renders at ~30fps.
const frameInterval = 33 * time.Millisecond

// StreamThrottle coalesces session updates for rendering. Updates overwrite
// each other; only the most recent snapshot matters because every update
// carries the full message list.
//
// Thread-safety: Store is called from the session manager's goroutines while
// Take runs on the Bubble Tea loop, so both are mutex protected.
type StreamThrottle struct {
	mu       sync.Mutex
	latest   session.Update
	dirty    bool
	lastTake time.Time
	interval time.Duration
}

// NewStreamThrottle creates a throttle with the default frame rate.
func NewStreamThrottle() *StreamThrottle {
	return &StreamThrottle{interval: frameInterval}
}

// Store records the latest session snapshot.
func (st *StreamThrottle) Store(u session.Update) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.latest = u
	st.dirty = true
}

// Take returns the pending snapshot if the frame interval has elapsed since
// the last taken frame. Settled updates (any phase other than streaming)
// bypass the interval so final content and errors render immediately.
func (st *StreamThrottle) Take() (session.Update, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.dirty {
		return session.Update{}, false
	}
	if st.latest.Phase == session.PhaseStreaming && time.Since(st.lastTake) < st.interval {
		return session.Update{}, false
	}

	st.dirty = false
	st.lastTake = time.Now()
	return st.latest, true
}

// Pending reports whether a snapshot is waiting.
func (st *StreamThrottle) Pending() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dirty
}

// =============================================================================
// TICK COMMAND
// =============================================================================

// frameTickMsg drives throttled re-rendering while a stream is live.
type frameTickMsg struct{ at time.Time }

// frameTickCmd schedules the next render frame.
func frameTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg{at: t}
	})
}
