// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klairvoyant/raven-tui/internal/model"
)

func chatClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(staticCreds("tok-1"), &ClientConfig{
		BaseURL:           srv.URL,
		Timeout:           5 * time.Second,
		RetryBaseDelay:    time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}), srv
}

func TestLoadMessagesMapping(t *testing.T) {
	client, _ := chatClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/c2" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]historyRow{
			{Role: "user", Content: `line one\nline two`, MessageID: "m1"},
			{Role: "user", Content: "", MediaURL: "https://x/y.png", MediaType: "image/png", MessageID: "m2"},
			{Role: "assistant", Content: "answer", MediaURL: "https://x/z.mp4", MediaType: "video/mp4", MessageID: "m3"},
		})
	})

	msgs, err := client.LoadMessages(context.Background(), "c2")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	// Text-only row: one text part, escaped newlines restored.
	if len(msgs[0].Parts) != 1 || msgs[0].Parts[0].Kind != model.KindText {
		t.Errorf("msgs[0].Parts = %+v", msgs[0].Parts)
	}
	if msgs[0].TextContent() != "line one\nline two" {
		t.Errorf("content = %q", msgs[0].TextContent())
	}

	// Media-only row: one image part, no empty text part.
	if len(msgs[1].Parts) != 1 || msgs[1].Parts[0].Kind != model.KindImage {
		t.Errorf("msgs[1].Parts = %+v", msgs[1].Parts)
	}

	// Mixed row: text part then media part.
	if len(msgs[2].Parts) != 2 {
		t.Fatalf("msgs[2].Parts = %+v", msgs[2].Parts)
	}
	if msgs[2].Parts[0].Kind != model.KindText || msgs[2].Parts[1].Kind != model.KindVideo {
		t.Errorf("part kinds = %q, %q", msgs[2].Parts[0].Kind, msgs[2].Parts[1].Kind)
	}
	if msgs[2].ID != "m3" || msgs[2].Role != model.RoleAssistant {
		t.Errorf("identity = %q/%q", msgs[2].ID, msgs[2].Role)
	}
}

func TestCreateChat(t *testing.T) {
	client, _ := chatClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chats/create" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			UserID string  `json:"user_id"`
			Title  *string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.UserID != "u1" {
			t.Errorf("user_id = %q", body.UserID)
		}
		if body.Title != nil {
			t.Errorf("title = %v, want null", *body.Title)
		}
		json.NewEncoder(w).Encode(map[string]string{"chat_id": "c9"})
	})

	id, err := client.CreateChat(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if id != "c9" {
		t.Errorf("id = %q, want c9", id)
	}
}

func TestRenameChat(t *testing.T) {
	client, _ := chatClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/chats/c1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Title != "renamed" {
			t.Errorf("title = %q", body.Title)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.RenameChat(context.Background(), "c1", "renamed"); err != nil {
		t.Fatalf("RenameChat: %v", err)
	}
}

func TestDeleteChat(t *testing.T) {
	client, _ := chatClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/chats/c1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.DeleteChat(context.Background(), "c1"); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
}

func TestChatDisplayTitle(t *testing.T) {
	if got := (Chat{Title: "plans"}).DisplayTitle(); got != "plans" {
		t.Errorf("DisplayTitle = %q", got)
	}
	if got := (Chat{}).DisplayTitle(); got != "New Chat" {
		t.Errorf("DisplayTitle = %q, want New Chat", got)
	}
}
