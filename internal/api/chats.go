// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/klairvoyant/raven-tui/internal/model"
)

// =============================================================================
// CHAT RECORDS
// =============================================================================

// Chat is one chat record as listed by the backend.
type Chat struct {
	ChatID    string `json:"chatId"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
}

// DisplayTitle returns the title or a default for untitled chats.
func (c Chat) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Chat"
}

// ListChats retrieves the caller's chat records.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateChat creates a new chat record and returns its id. An empty title is
// sent as null; the backend titles the chat from the first message.
func (c *Client) CreateChat(ctx context.Context, userID, title string) (string, error) {
	body := struct {
		UserID string  `json:"user_id"`
		Title  *string `json:"title"`
	}{UserID: userID}
	if title != "" {
		body.Title = &title
	}

	var created struct {
		ChatID string `json:"chat_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chats/create", body, &created); err != nil {
		return "", err
	}
	if created.ChatID == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "create chat returned no id"}
	}
	return created.ChatID, nil
}

// RenameChat updates a chat record's title.
func (c *Client) RenameChat(ctx context.Context, chatID, title string) error {
	body := struct {
		Title string `json:"title"`
	}{Title: title}
	return c.do(ctx, http.MethodPatch, "/api/chats/"+chatID, body, nil)
}

// DeleteChat removes a chat record.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+chatID, nil, nil)
}

// =============================================================================
// CHAT HISTORY
// =============================================================================

// historyRow is one persisted message as returned by the backend.
type historyRow struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	MessageID string `json:"messageId"`
}

// LoadMessages retrieves a chat's persisted history mapped into the message
// model: one text part when content is non-empty, one media part when a
// media URL and type are present.
func (c *Client) LoadMessages(ctx context.Context, chatID string) ([]*model.Message, error) {
	var rows []historyRow
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+chatID, nil, &rows); err != nil {
		return nil, err
	}

	messages := make([]*model.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, rowToMessage(row))
	}
	return messages, nil
}

func rowToMessage(row historyRow) *model.Message {
	var parts []model.Part
	if strings.TrimSpace(row.Content) != "" {
		parts = append(parts, model.NewTextPart(unescapeNewlines(row.Content)))
	}
	if row.MediaURL != "" && row.MediaType != "" {
		parts = append(parts, model.NewMediaPart(row.MediaURL, row.MediaType))
	}
	return &model.Message{
		ID:    row.MessageID,
		Role:  model.Role(row.Role),
		Parts: parts,
	}
}

// unescapeNewlines restores literal backslash-n sequences stored by the
// backend to real newlines.
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
