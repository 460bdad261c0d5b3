// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styled components for the application.
type Theme struct {
	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER / STATUS BAR STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	StatusPhase lipgloss.Style
	StatusError lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	MediaChip      lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	AttachmentBar  lipgloss.Style

	// ==========================================================================
	// CHAT LIST STYLES
	// ==========================================================================

	ListBox      lipgloss.Style
	ListTitle    lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	// ==========================================================================
	// MISC
	// ==========================================================================

	Spinner      lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates the default theme.
func NewTheme() *Theme {
	return &Theme{
		Header: lipgloss.NewStyle().
			Background(SurfaceDim).
			Foreground(TextSecondary).
			Padding(0, 1),
		HeaderTitle: lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true),

		StatusBar: lipgloss.NewStyle().
			Background(SurfaceDim).
			Foreground(TextSecondary).
			Padding(0, 1),
		StatusPhase: lipgloss.NewStyle().
			Foreground(Emerald).
			Bold(true),
		StatusError: lipgloss.NewStyle().
			Foreground(Rose),

		UserLabel: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		AssistantLabel: lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true),
		MessageBody: lipgloss.NewStyle().
			Foreground(TextPrimary),
		MediaChip: lipgloss.NewStyle().
			Foreground(Amber).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Overlay).
			Padding(0, 1),

		InputContainer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Overlay).
			Padding(0, 1),
		AttachmentBar: lipgloss.NewStyle().
			Foreground(Amber),

		ListBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Indigo).
			Padding(0, 1),
		ListTitle: lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true),
		ListItem: lipgloss.NewStyle().
			Foreground(TextSecondary),
		ListSelected: lipgloss.NewStyle().
			Foreground(TextPrimary).
			Background(Overlay).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(Indigo),
		ShortcutKey: lipgloss.NewStyle().
			Foreground(Cyan),
		ShortcutDesc: lipgloss.NewStyle().
			Foreground(TextMuted),
	}
}
