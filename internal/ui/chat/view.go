// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/klairvoyant/raven-tui/internal/session"
	"github.com/klairvoyant/raven-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full terminal frame.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	if m.listOpen {
		return m.viewChatList()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	if len(m.attachments) > 0 {
		b.WriteString(m.viewAttachments())
		b.WriteByte('\n')
	}
	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteByte('\n')
	b.WriteString(m.viewStatusBar())
	return b.String()
}

func (m *Model) viewHeader() string {
	title := "Raven"
	if chatID := m.current.ChatID; chatID != "" {
		title += "  " + util.TruncateRunes(chatID, 16)
	}
	return m.theme.Header.Width(m.width).Render(m.theme.HeaderTitle.Render(title))
}

func (m *Model) viewAttachments() string {
	chips := make([]string, 0, len(m.attachments))
	for _, f := range m.attachments {
		chips = append(chips, m.theme.MediaChip.Render(fmt.Sprintf("%s %s", f.Kind(), util.TruncateRunes(f.Name, 24))))
	}
	return m.theme.AttachmentBar.Width(m.width).Render(strings.Join(chips, " "))
}

func (m *Model) viewStatusBar() string {
	left := m.viewPhase()

	right := m.theme.ShortcutKey.Render("enter") + m.theme.ShortcutDesc.Render(" send ") +
		m.theme.ShortcutKey.Render("ctrl+l") + m.theme.ShortcutDesc.Render(" chats ") +
		m.theme.ShortcutKey.Render("ctrl+n") + m.theme.ShortcutDesc.Render(" new ") +
		m.theme.ShortcutKey.Render("ctrl+c") + m.theme.ShortcutDesc.Render(" quit")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) viewPhase() string {
	if err := m.current.Err; err != nil {
		return m.theme.StatusError.Render(util.TruncateWidth("error: "+err.Error(), m.width/2))
	}

	switch m.current.Phase {
	case session.PhaseUploading:
		return m.theme.StatusPhase.Render(m.spin.View() + " uploading...")
	case session.PhaseSubmitting:
		return m.theme.StatusPhase.Render(m.spin.View() + " sending...")
	case session.PhaseStreaming:
		return m.theme.StatusPhase.Render(m.spin.View() + " streaming... (esc to cancel)")
	}

	if m.status != "" {
		return m.theme.StatusPhase.Render(util.TruncateWidth(m.status, m.width-20))
	}
	return m.theme.StatusPhase.Render("ready")
}

// viewChatList renders the chat picker overlay.
func (m *Model) viewChatList() string {
	var b strings.Builder
	b.WriteString(m.theme.ListTitle.Render("Chats"))
	b.WriteByte('\n')

	if len(m.chats) == 0 {
		b.WriteString(m.theme.ListItem.Render("no chats yet"))
	}
	for i, chat := range m.chats {
		line := util.PadWidth(chat.DisplayTitle(), m.width-8)
		if i == m.selected {
			b.WriteString(m.theme.ListSelected.Render("> " + line))
		} else {
			b.WriteString(m.theme.ListItem.Render("  " + line))
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.theme.ShortcutKey.Render("enter") + m.theme.ShortcutDesc.Render(" open "))
	b.WriteString(m.theme.ShortcutKey.Render("ctrl+x") + m.theme.ShortcutDesc.Render(" delete "))
	b.WriteString(m.theme.ShortcutKey.Render("esc") + m.theme.ShortcutDesc.Render(" close"))

	return m.theme.ListBox.Width(m.width - 4).Render(b.String())
}
