// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/klairvoyant/raven-tui/internal/model"
)

func TestApplyUserMessageAppended(t *testing.T) {
	msg := model.NewUserMessage([]model.Part{model.NewTextPart("hello")})
	out := Apply(nil, UserMessageAppended{Message: msg})
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if out[0] != msg {
		t.Error("expected the appended message at the end")
	}
}

func TestApplyPlaceholderThenFragments(t *testing.T) {
	var msgs []*model.Message
	msgs = Apply(msgs, AssistantPlaceholderCreated{ID: "assistant-1"})
	msgs = Apply(msgs, AssistantFragmentReceived{ID: "assistant-1", Text: "Hel"})
	msgs = Apply(msgs, AssistantFragmentReceived{ID: "assistant-1", Text: "lo"})

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if got := msgs[0].TextContent(); got != "Hello" {
		t.Errorf("TextContent = %q, want %q", got, "Hello")
	}
	if msgs[0].Role != model.RoleAssistant {
		t.Errorf("Role = %q, want assistant", msgs[0].Role)
	}
}

// Fragments are strictly appended in application order and never truncate
// previous content, regardless of how the wire text was chunked.
func TestApplyFragmentOrderPreserved(t *testing.T) {
	var msgs []*model.Message
	msgs = Apply(msgs, AssistantPlaceholderCreated{ID: "a1"})
	for _, frag := range []string{"The ", "quick ", "", "brown ", "fox"} {
		msgs = Apply(msgs, AssistantFragmentReceived{ID: "a1", Text: frag})
	}
	if got := msgs[0].TextContent(); got != "The quick brown fox" {
		t.Errorf("TextContent = %q", got)
	}
}

// A fragment for an unknown id creates the assistant message rather than
// being lost.
func TestApplyFragmentLookupOrCreate(t *testing.T) {
	user := model.NewUserMessage([]model.Part{model.NewTextPart("q")})
	msgs := Apply(nil, UserMessageAppended{Message: user})
	msgs = Apply(msgs, AssistantFragmentReceived{ID: "assistant-late", Text: "answer"})

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	created := msgs[1]
	if created.ID != "assistant-late" {
		t.Errorf("ID = %q, want %q", created.ID, "assistant-late")
	}
	if created.TextContent() != "answer" {
		t.Errorf("TextContent = %q, want %q", created.TextContent(), "answer")
	}

	// Further fragments for the same id must append, not create again.
	msgs = Apply(msgs, AssistantFragmentReceived{ID: "assistant-late", Text: "!"})
	if len(msgs) != 2 {
		t.Fatalf("expected still 2 messages, got %d", len(msgs))
	}
	if msgs[1].TextContent() != "answer!" {
		t.Errorf("TextContent = %q, want %q", msgs[1].TextContent(), "answer!")
	}
}

// Apply never mutates its input: previous snapshots stay valid.
func TestApplyDoesNotMutateInput(t *testing.T) {
	var msgs []*model.Message
	msgs = Apply(msgs, AssistantPlaceholderCreated{ID: "a1"})
	before := msgs
	beforeText := before[0].TextContent()

	after := Apply(msgs, AssistantFragmentReceived{ID: "a1", Text: "grown"})

	if got := before[0].TextContent(); got != beforeText {
		t.Errorf("input snapshot mutated: %q -> %q", beforeText, got)
	}
	if after[0] == before[0] {
		t.Error("expected the updated message to be a clone")
	}
	if after[0].TextContent() != "grown" {
		t.Errorf("TextContent = %q, want %q", after[0].TextContent(), "grown")
	}
}

func TestApplyMessagesReplaced(t *testing.T) {
	old := Apply(nil, AssistantPlaceholderCreated{ID: "a1"})
	fresh := []*model.Message{
		model.NewUserMessage([]model.Part{model.NewTextPart("from history")}),
	}

	out := Apply(old, MessagesReplaced{Messages: fresh})
	if len(out) != 1 || out[0] != fresh[0] {
		t.Fatal("expected wholesale replacement")
	}

	// The replacement copies the slice header, so the caller's slice is
	// independent of later reductions.
	out2 := Apply(out, AssistantPlaceholderCreated{ID: "a2"})
	if len(fresh) != 1 {
		t.Errorf("caller slice grew to %d", len(fresh))
	}
	if len(out2) != 2 {
		t.Errorf("expected 2 messages, got %d", len(out2))
	}
}

func TestApplyMediaMessageKeepsPartsIntact(t *testing.T) {
	user := model.NewUserMessage([]model.Part{
		model.NewMediaPart("https://x/y.png", "image/png"),
		model.NewTextPart("look"),
	})
	msgs := Apply(nil, UserMessageAppended{Message: user})

	media := msgs[0].MediaParts()
	if len(media) != 1 {
		t.Fatalf("expected 1 media part, got %d", len(media))
	}
	if media[0].Kind != model.KindImage || media[0].Text != "https://x/y.png" {
		t.Errorf("media part = %+v", media[0])
	}
	if msgs[0].Parts[0].Kind != model.KindImage {
		t.Error("media part must precede the text part")
	}
}
