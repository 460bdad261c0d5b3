// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/klairvoyant/raven-tui/internal/model"
	"github.com/klairvoyant/raven-tui/internal/ui/styles"
	"github.com/klairvoyant/raven-tui/internal/util"
)

// =============================================================================
// CONVERSATION RENDERING
// =============================================================================

// renderConversation formats the message list for the viewport.
func renderConversation(theme *styles.Theme, renderer *glamour.TermRenderer, messages []*model.Message, width int) string {
	var b strings.Builder
	for i, msg := range messages {
		if !msg.Role.Renderable() {
			continue
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderMessage(theme, renderer, msg, width))
		b.WriteByte('\n')
	}
	return b.String()
}

// renderMessage formats one message: role label, media chips, then body.
func renderMessage(theme *styles.Theme, renderer *glamour.TermRenderer, msg *model.Message, width int) string {
	var b strings.Builder

	label := theme.UserLabel
	if msg.Role == model.RoleAssistant {
		label = theme.AssistantLabel
	}
	b.WriteString(label.Render(msg.Role.DisplayName()))
	b.WriteByte('\n')

	for _, part := range msg.MediaParts() {
		chip := fmt.Sprintf("[%s] %s", part.Kind, util.TruncateWidth(part.Text, width-12))
		b.WriteString(theme.MediaChip.Render(chip))
		b.WriteByte('\n')
	}

	text := msg.TextContent()
	if text == "" {
		if msg.Role == model.RoleAssistant {
			b.WriteString(theme.MessageBody.Render("..."))
		}
		return b.String()
	}

	b.WriteString(renderBody(theme, renderer, msg.Role, text))
	return b.String()
}

// renderBody runs assistant markdown through glamour when a renderer is
// configured. User text is always shown verbatim.
func renderBody(theme *styles.Theme, renderer *glamour.TermRenderer, role model.Role, text string) string {
	if role == model.RoleAssistant && renderer != nil {
		if out, err := renderer.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return theme.MessageBody.Render(text)
}
