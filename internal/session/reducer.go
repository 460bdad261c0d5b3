// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/klairvoyant/raven-tui/internal/model"
)

// =============================================================================
// REDUCER EVENTS
// =============================================================================

// Event is one state transition applied to the message list. The Manager is
// the only component that applies events; everything else (decoder, transport,
// uploads) only produces data.
type Event interface {
	isEvent()
}

// UserMessageAppended appends a fully formed user message.
type UserMessageAppended struct {
	Message *model.Message
}

// AssistantPlaceholderCreated appends an empty assistant message keyed by the
// pre-allocated id. Incoming fragments for the same id grow its text part.
type AssistantPlaceholderCreated struct {
	ID string
}

// AssistantFragmentReceived appends streamed text to the assistant message
// with the matching id.
type AssistantFragmentReceived struct {
	ID   string
	Text string
}

// MessagesReplaced replaces the whole list. Used only when loading a chat's
// history; any in-flight stream must already be superseded.
type MessagesReplaced struct {
	Messages []*model.Message
}

func (UserMessageAppended) isEvent()          {}
func (AssistantPlaceholderCreated) isEvent()  {}
func (AssistantFragmentReceived) isEvent()    {}
func (MessagesReplaced) isEvent()             {}

// =============================================================================
// REDUCER
// =============================================================================

// Apply returns the message list that results from applying one event.
//
// Apply never mutates its input: it returns a fresh slice, and any message it
// modifies is cloned first. Callers can therefore hand out previous snapshots
// without copying.
func Apply(messages []*model.Message, event Event) []*model.Message {
	switch ev := event.(type) {
	case UserMessageAppended:
		return appendMessage(messages, ev.Message)

	case AssistantPlaceholderCreated:
		return appendMessage(messages, model.NewAssistantPlaceholder(ev.ID))

	case AssistantFragmentReceived:
		return applyFragment(messages, ev.ID, ev.Text)

	case MessagesReplaced:
		out := make([]*model.Message, len(ev.Messages))
		copy(out, ev.Messages)
		return out

	default:
		return messages
	}
}

func appendMessage(messages []*model.Message, msg *model.Message) []*model.Message {
	out := make([]*model.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, msg)
}

// applyFragment grows the text part of the assistant message with the given
// id. Text is strictly appended, never re-ordered or truncated. If no message
// matches the id, a new assistant message is created with the fragment as its
// initial content; this keeps a late fragment from being lost, at the cost of
// at most one assistant message per id.
func applyFragment(messages []*model.Message, id, text string) []*model.Message {
	for i, msg := range messages {
		if msg.ID != id {
			continue
		}
		updated := msg.Clone()
		appendToTextPart(updated, text)
		out := make([]*model.Message, len(messages))
		copy(out, messages)
		out[i] = updated
		return out
	}
	placeholder := model.NewAssistantPlaceholder(id)
	appendToTextPart(placeholder, text)
	return appendMessage(messages, placeholder)
}

// appendToTextPart appends to the message's first text part, the live append
// target. A message without one gets a text part added.
func appendToTextPart(msg *model.Message, text string) {
	for i := range msg.Parts {
		if msg.Parts[i].Kind == model.KindText {
			msg.Parts[i].Text += text
			return
		}
	}
	msg.Parts = append(msg.Parts, model.NewTextPart(text))
}
