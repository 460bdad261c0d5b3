// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/klairvoyant/raven-tui/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update routes messages to the active surface.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.applyLayout()
		return m, nil

	case SessionMsg:
		return m.handleSessionMsg(session.Update(msg))

	case frameTickMsg:
		return m.handleFrameTick()

	case chatsLoadedMsg:
		m.chats = msg.chats
		if m.selected >= len(m.chats) {
			m.selected = 0
		}
		return m, nil

	case chatOpenedMsg:
		m.listOpen = false
		m.status = ""
		return m, m.loadChatsCmd()

	case statusMsg:
		m.status = string(msg)
		return m, m.loadChatsCmd()

	case errMsg:
		m.status = "error: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		if m.listOpen {
			return m.handleListKey(msg)
		}
		return m.handleChatKey(msg)
	}

	return m.updateComponents(msg)
}

// handleSessionMsg stores a manager snapshot and drains it through the
// frame throttle so rapid fragments repaint at most once per frame.
func (m *Model) handleSessionMsg(u session.Update) (tea.Model, tea.Cmd) {
	m.throttle.Store(u)

	if u, ok := m.throttle.Take(); ok {
		m.applyUpdate(u)
	}
	if m.throttle.Pending() && !m.tickActive {
		m.tickActive = true
		return m, frameTickCmd()
	}
	return m, nil
}

// handleFrameTick applies any coalesced snapshot and reschedules while
// more are pending.
func (m *Model) handleFrameTick() (tea.Model, tea.Cmd) {
	if u, ok := m.throttle.Take(); ok {
		m.applyUpdate(u)
	}
	if m.throttle.Pending() {
		return m, frameTickCmd()
	}
	m.tickActive = false
	return m, nil
}

// handleChatKey processes keys while the conversation surface is focused.
func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.current.Phase != session.PhaseIdle {
			m.manager.Cancel()
			m.status = "canceled"
			return m, nil
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.NewChat):
		m.manager.Reset()
		m.attachments = nil
		m.status = "new chat"
		m.refreshViewport(true)
		return m, nil

	case key.Matches(msg, m.keys.ChatList):
		m.listOpen = true
		return m, m.loadChatsCmd()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	return m.updateComponents(msg)
}

// handleListKey processes keys while the chat list overlay is open.
func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ListClose):
		m.listOpen = false
		return m, nil

	case key.Matches(msg, m.keys.ListUp):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case key.Matches(msg, m.keys.ListDown):
		if m.selected < len(m.chats)-1 {
			m.selected++
		}
		return m, nil

	case key.Matches(msg, m.keys.ListOpen):
		if len(m.chats) == 0 {
			return m, nil
		}
		chat := m.chats[m.selected]
		m.status = "opening " + chat.DisplayTitle()
		return m, m.openChatCmd(chat.ChatID)

	case key.Matches(msg, m.keys.ListDelete):
		if len(m.chats) == 0 {
			return m, nil
		}
		chat := m.chats[m.selected]
		return m, m.deleteChatCmd(chat.ChatID)
	}

	return m, nil
}

// handleSubmit sends the composed input, either as a slash command or as a
// chat message through the session manager.
func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" && len(m.attachments) == 0 {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}

	files := m.attachments
	m.attachments = nil
	m.input.Reset()
	m.status = ""
	m.applyLayout()

	m.manager.Submit(context.Background(), text, files)
	return m, nil
}

// updateComponents forwards remaining messages to the nested bubbles.
func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}
