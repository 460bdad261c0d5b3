// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local chat history cache.
//
// The cache makes chat switching feel instant: the last known history for a
// chat is shown immediately while the fresh copy is fetched from the backend.
// It is strictly a cache, never the source of truth.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/klairvoyant/raven-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed        = errors.New("cache is closed")
	ErrInvalidPath   = errors.New("invalid cache path")
	ErrInvalidChatID = errors.New("invalid chat id")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS chat_cache (
	chat_id    TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// =============================================================================
// CACHE
// =============================================================================

// Cache is a sqlite-backed per-chat history cache. Safe for concurrent use;
// database/sql serializes access to the underlying connection pool.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at the given path.
func Open(path string) (*Cache, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.db == nil {
		return ErrClosed
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Get returns the cached history for a chat, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, chatID string) ([]*model.Message, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM chat_cache WHERE chat_id = ?", chatID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	var messages []*model.Message
	if err := json.Unmarshal(payload, &messages); err != nil {
		// A corrupt row is useless; drop it so the next Put repairs it.
		c.db.ExecContext(ctx, "DELETE FROM chat_cache WHERE chat_id = ?", chatID)
		return nil, nil
	}
	return messages, nil
}

// Put stores the history for a chat, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, chatID string, messages []*model.Message) error {
	if c.db == nil {
		return ErrClosed
	}
	if chatID == "" {
		return ErrInvalidChatID
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO chat_cache (chat_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		chatID, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Delete removes a chat's cached history. Deleting a missing chat is not an
// error.
func (c *Cache) Delete(ctx context.Context, chatID string) error {
	if c.db == nil {
		return ErrClosed
	}
	_, err := c.db.ExecContext(ctx, "DELETE FROM chat_cache WHERE chat_id = ?", chatID)
	if err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Prune removes entries not updated within the given age.
func (c *Cache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if c.db == nil {
		return 0, ErrClosed
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := c.db.ExecContext(ctx, "DELETE FROM chat_cache WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache prune failed: %w", err)
	}
	return res.RowsAffected()
}
