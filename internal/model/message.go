// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleData      Role = "data"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Raven"
	default:
		return string(r)
	}
}

// Renderable reports whether messages with this role are shown to the user.
// System and data messages carry metadata only.
func (r Role) Renderable() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// PART TYPE
// =============================================================================

// PartKind classifies a single unit of message content.
type PartKind string

const (
	KindText     PartKind = "text"
	KindImage    PartKind = "image"
	KindVideo    PartKind = "video"
	KindAudio    PartKind = "audio"
	KindDocument PartKind = "document"
	KindOther    PartKind = "other"
)

// Part is one unit of message content. For KindText, Text holds the literal
// textual content; for every other kind it holds the durable media URL.
// Media parts are immutable once attached to a message.
type Part struct {
	Kind     PartKind `json:"type,omitempty"`
	Text     string   `json:"text"`
	MimeType string   `json:"mimeType,omitempty"`
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Kind: KindText, Text: text}
}

// NewMediaPart creates an immutable media part for an uploaded file.
// The kind is derived from the MIME type's major component.
func NewMediaPart(url, mimeType string) Part {
	return Part{Kind: KindFromMime(mimeType), Text: url, MimeType: mimeType}
}

// KindFromMime maps a MIME type to a part kind using its major component:
// image/* -> image, video/* -> video, audio/* -> audio, any other concrete
// type -> document, missing type -> other.
func KindFromMime(mimeType string) PartKind {
	major, _, _ := strings.Cut(mimeType, "/")
	switch major {
	case "image":
		return KindImage
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	case "":
		return KindOther
	default:
		return KindDocument
	}
}

// IsMedia reports whether the part holds a media URL rather than text.
func (p Part) IsMedia() bool {
	return p.Kind != KindText && p.Kind != ""
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a conversation.
//
// A user message is fully formed at submission time and never mutated
// afterwards. An assistant message, while streaming, grows by appending to
// its single text part (the live append target); the session reducer is the
// only writer.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewUserMessage creates a user message from pre-built parts.
// Parts keep insertion order: callers attach media parts before the text
// part so display order matches the original submission.
func NewUserMessage(parts []Part) *Message {
	return &Message{
		ID:        GenerateID(RoleUser),
		Role:      RoleUser,
		Parts:     parts,
		Timestamp: time.Now(),
	}
}

// NewAssistantPlaceholder creates an empty assistant message with one empty
// text part, keyed by the pre-allocated id. Incoming stream fragments append
// to that part.
func NewAssistantPlaceholder(id string) *Message {
	return &Message{
		ID:        id,
		Role:      RoleAssistant,
		Parts:     []Part{NewTextPart("")},
		Timestamp: time.Now(),
	}
}

// TextContent returns the concatenated text of all text parts.
func (m *Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == KindText || p.Kind == "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// MediaParts returns the media parts in insertion order.
func (m *Message) MediaParts() []Part {
	var parts []Part
	for _, p := range m.Parts {
		if p.IsMedia() {
			parts = append(parts, p)
		}
	}
	return parts
}

// Clone returns a copy of the message with its own parts slice.
// The reducer relies on this to keep published conversation snapshots
// immutable across updates.
func (m *Message) Clone() *Message {
	clone := *m
	clone.Parts = make([]Part, len(m.Parts))
	copy(clone.Parts, m.Parts)
	return &clone
}

// Preview returns a truncated preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.TextContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no parts with content.
func (m *Message) IsEmpty() bool {
	for _, p := range m.Parts {
		if p.Text != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GenerateID creates a unique client-side message id, prefixed with the role
// so ids remain easy to attribute in logs.
func GenerateID(role Role) string {
	return string(role) + "-" + uuid.NewString()
}
