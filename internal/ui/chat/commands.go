// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/klairvoyant/raven-tui/internal/media"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const helpText = "/new [title]  /chats  /open <id>  /rename <title>  /delete  /attach <path>  /detach  /clear  /help  /quit"

// parseCommand splits a slash command into its name and argument.
func parseCommand(text string) (name, arg string) {
	text = strings.TrimPrefix(text, "/")
	name, arg, _ = strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

// runCommand executes one slash command.
func (m *Model) runCommand(text string) (tea.Model, tea.Cmd) {
	name, arg := parseCommand(text)

	switch name {
	case "help", "?":
		m.status = helpText
		return m, nil

	case "quit", "q", "exit":
		return m, tea.Quit

	case "new":
		if arg != "" {
			return m, m.createChatCmd(arg)
		}
		m.manager.Reset()
		m.attachments = nil
		m.status = "new chat"
		m.refreshViewport(true)
		return m, nil

	case "chats", "list":
		m.listOpen = true
		return m, m.loadChatsCmd()

	case "open":
		if arg == "" {
			m.status = "usage: /open <chat-id>"
			return m, nil
		}
		return m, m.openChatCmd(arg)

	case "rename":
		if arg == "" {
			m.status = "usage: /rename <title>"
			return m, nil
		}
		chatID := m.manager.ChatID()
		if chatID == "" {
			m.status = "no active chat to rename"
			return m, nil
		}
		return m, m.renameChatCmd(chatID, arg)

	case "delete":
		chatID := m.manager.ChatID()
		if chatID == "" {
			m.status = "no active chat to delete"
			return m, nil
		}
		return m, m.deleteChatCmd(chatID)

	case "attach":
		if arg == "" {
			m.status = "usage: /attach <path>"
			return m, nil
		}
		return m.attachFile(arg)

	case "detach":
		n := len(m.attachments)
		m.attachments = nil
		m.applyLayout()
		m.status = fmt.Sprintf("removed %d attachment(s)", n)
		return m, nil

	case "clear":
		m.manager.Reset()
		m.attachments = nil
		m.status = ""
		m.refreshViewport(true)
		return m, nil
	}

	m.status = "unknown command: /" + name + " (try /help)"
	return m, nil
}

// attachFile loads a file from disk and queues it for the next submission.
func (m *Model) attachFile(path string) (tea.Model, tea.Cmd) {
	file, err := media.FromPath(path)
	if err != nil {
		m.status = "attach failed: " + err.Error()
		return m, nil
	}

	queued := append(append([]media.File(nil), m.attachments...), file)
	limits := media.DefaultConfig()
	if len(queued) > limits.MaxAttachments {
		m.status = media.ErrTooManyAttachments.Error()
		return m, nil
	}
	if int64(len(file.Content)) > limits.MaxFileSize {
		m.status = media.ErrFileTooLarge.Error()
		return m, nil
	}

	m.attachments = queued
	m.applyLayout()
	m.status = fmt.Sprintf("attached %s (%s)", file.Name, file.ContentType)
	return m, nil
}
