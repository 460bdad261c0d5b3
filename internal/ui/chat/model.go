// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The Model is a pure subscriber of the session manager: it renders the
// conversation snapshots the manager publishes and translates key presses
// into manager and backend calls. It never mutates conversation state itself.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/klairvoyant/raven-tui/internal/api"
	"github.com/klairvoyant/raven-tui/internal/config"
	"github.com/klairvoyant/raven-tui/internal/media"
	"github.com/klairvoyant/raven-tui/internal/session"
	"github.com/klairvoyant/raven-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SessionMsg wraps a session manager snapshot. The main package forwards
// manager notifications into the program as this message.
type SessionMsg session.Update

// chatsLoadedMsg carries the refreshed chat list.
type chatsLoadedMsg struct {
	chats []api.Chat
}

// chatOpenedMsg reports a completed chat switch.
type chatOpenedMsg struct {
	chatID string
}

// statusMsg sets the transient status line.
type statusMsg string

// errMsg carries a failed backend operation.
type errMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the top-level Bubble Tea model for the chat interface.
type Model struct {
	manager *session.Manager
	client  *api.Client
	cfg     *config.Config
	theme   *styles.Theme
	keys    KeyMap

	input    textarea.Model
	viewport viewport.Model
	spin     spinner.Model

	throttle   *StreamThrottle
	current    session.Update
	tickActive bool

	renderer *glamour.TermRenderer

	attachments []media.File

	chats    []api.Chat
	listOpen bool
	selected int

	status string

	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(cfg *config.Config, manager *session.Manager, client *api.Client) *Model {
	input := textarea.New()
	input.Placeholder = "Message Raven... (/help for commands)"
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	return &Model{
		manager:  manager,
		client:   client,
		cfg:      cfg,
		theme:    styles.NewTheme(),
		keys:     DefaultKeyMap(),
		input:    input,
		spin:     spin,
		throttle: NewStreamThrottle(),
	}
}

// Init starts the blink cursor and loads the chat list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, m.loadChatsCmd())
}

// applyLayout recomputes component sizes after a resize.
func (m *Model) applyLayout() {
	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height() + 2
	attachHeight := 0
	if len(m.attachments) > 0 {
		attachHeight = 1
	}

	vpHeight := m.height - headerHeight - statusHeight - inputHeight - attachHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(m.width - 4)
	m.theme.Width = m.width
	m.theme.Height = m.height

	if m.cfg.UI.RenderMarkdown {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.width-4),
		)
		if err == nil {
			m.renderer = renderer
		}
	}

	m.refreshViewport(true)
}

// refreshViewport re-renders the conversation into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderConversation(m.theme, m.renderer, m.current.Messages, m.viewport.Width))
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// applyUpdate installs a session snapshot into the model.
func (m *Model) applyUpdate(u session.Update) {
	m.current = u
	m.refreshViewport(true)
}

// =============================================================================
// BACKEND COMMANDS
// =============================================================================

func (m *Model) loadChatsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		chats, err := client.ListChats(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return chatsLoadedMsg{chats: chats}
	}
}

func (m *Model) openChatCmd(chatID string) tea.Cmd {
	manager := m.manager
	return func() tea.Msg {
		if err := manager.LoadChat(context.Background(), chatID); err != nil {
			return errMsg{err: err}
		}
		return chatOpenedMsg{chatID: chatID}
	}
}

func (m *Model) renameChatCmd(chatID, title string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.RenameChat(context.Background(), chatID, title); err != nil {
			return errMsg{err: err}
		}
		return statusMsg("renamed chat to " + title)
	}
}

func (m *Model) deleteChatCmd(chatID string) tea.Cmd {
	client := m.client
	manager := m.manager
	return func() tea.Msg {
		if err := client.DeleteChat(context.Background(), chatID); err != nil {
			return errMsg{err: err}
		}
		manager.Reset()
		return statusMsg("deleted chat")
	}
}

func (m *Model) createChatCmd(title string) tea.Cmd {
	client := m.client
	manager := m.manager
	userID := m.cfg.Auth.UserID
	return func() tea.Msg {
		chatID, err := client.CreateChat(context.Background(), userID, title)
		if err != nil {
			return errMsg{err: err}
		}
		manager.Reset()
		manager.SetChatID(chatID)
		return chatOpenedMsg{chatID: chatID}
	}
}
