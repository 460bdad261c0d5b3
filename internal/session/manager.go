// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state machine: one Manager per
// application instance drives submissions, streaming, cancellation, and chat
// switching, and is the sole writer of the message list.
package session

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/klairvoyant/raven-tui/internal/api"
	"github.com/klairvoyant/raven-tui/internal/media"
	"github.com/klairvoyant/raven-tui/internal/model"
)

// =============================================================================
// PHASE
// =============================================================================

// Phase is the submission state of the active conversation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseSubmitting
	PhaseStreaming
)

// String returns the phase name for logs and the status bar.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseSubmitting:
		return "submitting"
	case PhaseStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Backend is the chat backend surface the Manager depends on. Implemented by
// api.Client.
type Backend interface {
	Token(ctx context.Context) (string, error)
	StreamChat(ctx context.Context, token string, messages []*model.Message, chatID string, onFragment func(string)) error
	LoadMessages(ctx context.Context, chatID string) ([]*model.Message, error)
}

// MediaUploader converts attached files into durable media parts.
// Implemented by media.Uploader.
type MediaUploader interface {
	UploadAll(ctx context.Context, files []media.File) ([]model.Part, error)
}

// HistoryCache is an optional local cache of per-chat history. A Get miss
// returns (nil, nil). Cache failures are soft: the Manager logs and continues
// against the backend.
type HistoryCache interface {
	Get(ctx context.Context, chatID string) ([]*model.Message, error)
	Put(ctx context.Context, chatID string, messages []*model.Message) error
}

// =============================================================================
// UPDATES
// =============================================================================

// Update is a snapshot published to the subscriber after every state change.
// Messages is an immutable snapshot: the Manager never mutates a slice it has
// published.
type Update struct {
	ChatID   string
	Messages []*model.Message
	Phase    Phase
	Err      error
}

// =============================================================================
// MANAGER
// =============================================================================

// Config holds the Manager's collaborators.
type Config struct {
	Backend  Backend
	Uploader MediaUploader

	// Cache is optional; nil disables local history caching.
	Cache HistoryCache

	// Notify receives a snapshot after every state change. Called from the
	// Manager's goroutines; implementations must be safe for that (bubbletea's
	// Program.Send is).
	Notify func(Update)
}

// Manager coordinates one conversation: it owns the message list, runs the
// submission pipeline, and enforces single-flight semantics so at most one
// stream is live at a time.
type Manager struct {
	mu       sync.Mutex
	chatID   string
	messages []*model.Message
	phase    Phase
	lastErr  error

	flight   *flightTracker
	backend  Backend
	uploader MediaUploader
	cache    HistoryCache
	notify   func(Update)
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	notify := cfg.Notify
	if notify == nil {
		notify = func(Update) {}
	}
	return &Manager{
		flight:   newFlightTracker(),
		backend:  cfg.Backend,
		uploader: cfg.Uploader,
		cache:    cfg.Cache,
		notify:   notify,
	}
}

// SetNotify replaces the notification callback. It exists for setups where
// the consumer (a Bubble Tea program) is constructed after the Manager.
func (m *Manager) SetNotify(notify func(Update)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if notify == nil {
		notify = func(Update) {}
	}
	m.notify = notify
}

// Snapshot returns the current state as an Update.
func (m *Manager) Snapshot() Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// ChatID returns the active chat id, empty for an unsaved chat.
func (m *Manager) ChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatID
}

// Phase returns the current submission phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// =============================================================================
// SUBMISSION PIPELINE
// =============================================================================

// Submit starts a new submission with the given text and attached files.
// A submission with empty text and no files is ignored. If a prior submission
// is still streaming it is cancelled before this one starts; the cancellation
// is synchronous, the pipeline itself runs in a background goroutine.
func (m *Manager) Submit(ctx context.Context, text string, files []media.File) {
	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return
	}

	sctx, gen := m.flight.begin(ctx)
	go m.run(sctx, gen, text, files)
}

// Cancel stops the in-flight submission, if any. Cancellation is not an
// error: partial assistant text stays, and no failure is surfaced.
func (m *Manager) Cancel() {
	m.flight.cancelCurrent()
}

// run executes one submission attempt: upload media, acquire a credential,
// append the optimistic messages, stream the reply, settle.
func (m *Manager) run(ctx context.Context, gen uint64, text string, files []media.File) {
	tx := &txn{}

	// Media first. A failed upload aborts the whole submission; rollback
	// removes any optimistic messages the attempt had already appended, so no
	// partial media set ever reaches the conversation.
	var mediaParts []model.Part
	if len(files) > 0 {
		m.setPhase(gen, PhaseUploading)
		parts, err := m.uploader.UploadAll(ctx, files)
		if err != nil {
			m.rollback(gen, tx)
			m.settle(gen, tx, err)
			return
		}
		mediaParts = parts
	}

	m.setPhase(gen, PhaseSubmitting)

	// Credential is acquired fresh per request, before anything is appended:
	// a credential failure leaves the conversation untouched.
	token, err := m.backend.Token(ctx)
	if err != nil {
		m.settle(gen, tx, err)
		return
	}

	parts := make([]model.Part, 0, len(mediaParts)+1)
	parts = append(parts, mediaParts...)
	if text != "" {
		parts = append(parts, model.NewTextPart(text))
	}
	userMsg := model.NewUserMessage(parts)
	assistantID := model.GenerateID(model.RoleAssistant)

	payload, chatID, ok := m.appendOptimistic(gen, tx, userMsg, assistantID)
	if !ok {
		return // superseded
	}

	m.setPhase(gen, PhaseStreaming)
	err = m.backend.StreamChat(ctx, token, payload, chatID, func(fragment string) {
		m.applyFragment(gen, assistantID, fragment)
	})
	m.settle(gen, tx, err)
}

// appendOptimistic appends the user message and the assistant placeholder in
// one atomic step, records both ids in the transaction, and returns the
// request payload (history including the new user turn, excluding the
// placeholder). Returns ok=false when the submission has been superseded.
func (m *Manager) appendOptimistic(gen uint64, tx *txn, userMsg *model.Message, assistantID string) ([]*model.Message, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flight.current() != gen {
		return nil, "", false
	}

	m.messages = Apply(m.messages, UserMessageAppended{Message: userMsg})
	payload := m.messages
	m.messages = Apply(m.messages, AssistantPlaceholderCreated{ID: assistantID})
	tx.record(userMsg.ID)
	tx.record(assistantID)

	m.notifyLocked()
	return payload, m.chatID, true
}

// applyFragment applies one streamed fragment, dropping it when the
// generation is stale.
func (m *Manager) applyFragment(gen uint64, id, fragment string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flight.current() != gen {
		return
	}
	m.messages = Apply(m.messages, AssistantFragmentReceived{ID: id, Text: fragment})
	m.notifyLocked()
}

// settle finishes a submission attempt.
//
// Cancellation settles silently with whatever partial text arrived. A stream
// or transport failure surfaces the error but keeps partial assistant text;
// failures before the optimistic append (credential, upload) surface with the
// conversation untouched.
func (m *Manager) settle(gen uint64, tx *txn, err error) {
	m.mu.Lock()
	if m.flight.current() != gen {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseIdle
	if err == nil || api.IsCanceled(err) {
		m.lastErr = nil
	} else {
		m.lastErr = err
		log.Printf("SUBMIT_FAILED | chat=%s err=%v", m.chatID, err)
	}

	chatID := m.chatID
	snapshot := m.messages
	m.notifyLocked()
	m.mu.Unlock()

	if err == nil && m.cache != nil && chatID != "" {
		if cerr := m.cache.Put(context.Background(), chatID, snapshot); cerr != nil {
			log.Printf("CACHE_PUT_FAILED | chat=%s err=%v", chatID, cerr)
		}
	}
}

// rollback removes the transaction's appended messages, if any. The rollback
// is a no-op for submissions that failed before their optimistic append.
func (m *Manager) rollback(gen uint64, tx *txn) {
	if len(tx.ids) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flight.current() != gen {
		return
	}
	ids := make(map[string]bool, len(tx.ids))
	for _, id := range tx.ids {
		ids[id] = true
	}
	kept := make([]*model.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if !ids[msg.ID] {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	tx.ids = nil
	m.notifyLocked()
}

// =============================================================================
// CHAT SWITCHING
// =============================================================================

// LoadChat switches the active conversation to the given chat. Any in-flight
// stream is superseded first, so stale fragments can never land in the new
// chat. Cached history is shown immediately when available, then replaced by
// the fresh copy from the backend.
func (m *Manager) LoadChat(ctx context.Context, chatID string) error {
	m.flight.supersede()

	served := false
	if m.cache != nil {
		cached, err := m.cache.Get(ctx, chatID)
		if err != nil {
			log.Printf("CACHE_GET_FAILED | chat=%s err=%v", chatID, err)
		} else if cached != nil {
			m.replace(chatID, cached)
			served = true
		}
	}

	fresh, err := m.backend.LoadMessages(ctx, chatID)
	if err != nil {
		if served {
			log.Printf("HISTORY_REFRESH_FAILED | chat=%s err=%v", chatID, err)
			return nil
		}
		return err
	}

	m.replace(chatID, fresh)
	if m.cache != nil {
		if cerr := m.cache.Put(ctx, chatID, fresh); cerr != nil {
			log.Printf("CACHE_PUT_FAILED | chat=%s err=%v", chatID, cerr)
		}
	}
	return nil
}

// Reset clears the conversation for a new, unsaved chat.
func (m *Manager) Reset() {
	m.flight.supersede()
	m.replace("", nil)
}

// SetChatID binds an unsaved conversation to a server-assigned chat id.
func (m *Manager) SetChatID(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatID = chatID
	m.notifyLocked()
}

func (m *Manager) replace(chatID string, messages []*model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatID = chatID
	m.messages = Apply(m.messages, MessagesReplaced{Messages: messages})
	m.phase = PhaseIdle
	m.lastErr = nil
	m.notifyLocked()
}

// =============================================================================
// INTERNAL
// =============================================================================

// txn records the ids appended during one submission attempt so a rollback
// can remove exactly those messages.
type txn struct {
	ids []string
}

func (t *txn) record(id string) {
	t.ids = append(t.ids, id)
}

func (m *Manager) setPhase(gen uint64, phase Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flight.current() != gen {
		return
	}
	m.phase = phase
	m.notifyLocked()
}

// snapshotLocked builds an Update from the current state. Callers hold mu.
func (m *Manager) snapshotLocked() Update {
	return Update{
		ChatID:   m.chatID,
		Messages: m.messages,
		Phase:    m.phase,
		Err:      m.lastErr,
	}
}

// notifyLocked publishes the current snapshot. Callers hold mu; the callback
// must not call back into the Manager synchronously.
func (m *Manager) notifyLocked() {
	m.notify(m.snapshotLocked())
}
