// Raven TUI - a terminal client for streaming chat with the Raven backend.
//
// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/klairvoyant/raven-tui/internal/api"
	"github.com/klairvoyant/raven-tui/internal/config"
	"github.com/klairvoyant/raven-tui/internal/media"
	"github.com/klairvoyant/raven-tui/internal/session"
	"github.com/klairvoyant/raven-tui/internal/storage"
	"github.com/klairvoyant/raven-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("raven-tui %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return
		case "help", "--help", "-h":
			fmt.Println("raven-tui - terminal client for Raven chat")
			fmt.Println()
			fmt.Println("usage: raven-tui [version|help]")
			fmt.Println()
			fmt.Println("Configuration is read from ~/.raven/config.toml (or config.json).")
			fmt.Println("Environment overrides: RAVEN_BASE_URL, RAVEN_TOKEN, RAVEN_USER_ID,")
			fmt.Println("RAVEN_THEME, RAVEN_NO_CACHE.")
			return
		}
	}

	// The TUI owns the terminal, so logs go to a file when requested and are
	// discarded otherwise.
	if path := os.Getenv("RAVEN_DEBUG"); path != "" {
		f, err := tea.LogToFile(path, "raven")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening debug log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg := config.Global()

	client := api.NewClient(credentialProvider(), &api.ClientConfig{
		BaseURL:           cfg.Server.BaseURL,
		Timeout:           cfg.Server.Timeout(),
		MaxRetries:        cfg.Server.MaxRetries,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		UserAgent:         "raven-tui/" + Version,
	})

	uploader := media.NewUploader(client, &media.Config{
		MaxAttachments: cfg.Upload.MaxAttachments,
		MaxFileSize:    int64(cfg.Upload.MaxFileSizeMiB) << 20,
	})

	var cache session.HistoryCache
	if cfg.Cache.Enabled {
		// A broken cache degrades to backend-only history, never a startup
		// failure.
		if path, err := cfg.CachePath(); err != nil {
			log.Printf("CACHE_OPEN_FAILED | err=%v", err)
		} else if c, err := storage.Open(path); err != nil {
			log.Printf("CACHE_OPEN_FAILED | path=%s err=%v", path, err)
		} else {
			cache = c
			defer c.Close()
		}
	}

	manager := session.NewManager(session.Config{
		Backend:  client,
		Uploader: uploader,
		Cache:    cache,
	})

	m := chat.New(cfg, manager, client)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// Manager notifications arrive on its goroutines; Program.Send is the
	// thread-safe bridge into the Bubble Tea loop.
	manager.SetNotify(func(u session.Update) {
		p.Send(chat.SessionMsg(u))
	})

	// Config edits refresh the global snapshot; the credential provider reads
	// it per request, so a token change takes effect on the next submission.
	// Transport and upload settings need a restart.
	watcher, err := config.Watch(func(*config.Config) {})
	if err == nil {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running raven-tui: %v\n", err)
		os.Exit(1)
	}
}

// credentialProvider adapts the configured token to the per-request
// credential interface. It reads the global config on every call, so a
// hot-reloaded token is picked up by the next request. An empty token
// surfaces as a credential error at submit time, before any optimistic
// state change.
func credentialProvider() api.CredentialProvider {
	return func(ctx context.Context) (string, error) {
		token := config.Global().Auth.Token
		if token == "" {
			return "", api.ErrNoCredential
		}
		return token, nil
	}
}
