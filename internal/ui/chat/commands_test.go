// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantArg  string
	}{
		{"/help", "help", ""},
		{"/new", "new", ""},
		{"/new Project Notes", "new", "Project Notes"},
		{"/rename  My Chat ", "rename", "My Chat"},
		{"/open chat-123", "open", "chat-123"},
		{"/OPEN chat-123", "open", "chat-123"},
		{"/attach /tmp/pic.png", "attach", "/tmp/pic.png"},
		{"/q", "q", ""},
	}

	for _, tt := range tests {
		name, arg := parseCommand(tt.input)
		if name != tt.wantName || arg != tt.wantArg {
			t.Errorf("parseCommand(%q) = (%q, %q), want (%q, %q)",
				tt.input, name, arg, tt.wantName, tt.wantArg)
		}
	}
}
