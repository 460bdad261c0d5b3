// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package media converts local files attached to a submission into durable
// message parts.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/klairvoyant/raven-tui/internal/api"
	"github.com/klairvoyant/raven-tui/internal/model"
)

// =============================================================================
// LIMITS AND ERRORS
// =============================================================================

const (
	// DefaultMaxAttachments is the maximum number of files per submission.
	DefaultMaxAttachments = 20

	// DefaultMaxFileSize is the maximum size of one attached file.
	DefaultMaxFileSize = 20 << 20 // 20 MiB
)

var (
	// ErrTooManyAttachments is returned before any network call when the
	// attachment count exceeds the configured maximum.
	ErrTooManyAttachments = errors.New("too many attachments")

	// ErrFileTooLarge is returned before any network call when a single
	// file exceeds the configured maximum size.
	ErrFileTooLarge = errors.New("file too large")
)

// UploadError reports a failed upload of one file. Any single failure aborts
// the whole submission: no partial media set is ever attached.
type UploadError struct {
	Filename string
	Cause    error
}

func (e *UploadError) Error() string {
	return "upload failed for " + e.Filename + ": " + e.Cause.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// FILE TYPE
// =============================================================================

// File is one local file staged for upload.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// FromPath stages a file from disk, deriving the content type from the
// extension with a sniff of the leading bytes as fallback.
func FromPath(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read attachment: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// Kind returns the part kind this file will map to.
func (f File) Kind() model.PartKind {
	return model.KindFromMime(f.ContentType)
}

// =============================================================================
// UPLOADER
// =============================================================================

// TargetIssuer requests a pre-signed write target for one file. Implemented
// by the backend api.Client.
type TargetIssuer interface {
	CreateUploadTarget(ctx context.Context, filename, contentType string) (api.UploadTarget, error)
}

// Config holds uploader options.
type Config struct {
	// MaxAttachments per submission (default: 20)
	MaxAttachments int

	// MaxFileSize per file in bytes (default: 20 MiB)
	MaxFileSize int64

	// PutTimeout bounds each individual PUT (default: 60s)
	PutTimeout time.Duration
}

// DefaultConfig returns the default uploader configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttachments: DefaultMaxAttachments,
		MaxFileSize:    DefaultMaxFileSize,
		PutTimeout:     60 * time.Second,
	}
}

// Uploader coordinates the upload of a submission's attached files.
type Uploader struct {
	issuer     TargetIssuer
	config     *Config
	httpClient *http.Client
}

// NewUploader creates an uploader backed by the given target issuer.
func NewUploader(issuer TargetIssuer, config *Config) *Uploader {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxAttachments == 0 {
		config.MaxAttachments = DefaultMaxAttachments
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if config.PutTimeout == 0 {
		config.PutTimeout = 60 * time.Second
	}

	return &Uploader{
		issuer: issuer,
		config: config,
		httpClient: &http.Client{
			Timeout: config.PutTimeout,
		},
	}
}

// Check validates the guardrails for a set of files without any network
// call. Callers surface violations immediately at attach time.
func (u *Uploader) Check(files []File) error {
	if len(files) > u.config.MaxAttachments {
		return fmt.Errorf("%w: %d files, maximum is %d", ErrTooManyAttachments, len(files), u.config.MaxAttachments)
	}
	for _, f := range files {
		if int64(len(f.Content)) > u.config.MaxFileSize {
			return fmt.Errorf("%w: %s is %d bytes, maximum is %d", ErrFileTooLarge, f.Name, len(f.Content), u.config.MaxFileSize)
		}
	}
	return nil
}

// UploadAll uploads every file concurrently and returns one media part per
// file, in the order the files were attached.
//
// The policy is all-or-nothing: the first failure cancels the remaining
// uploads and the whole call fails, so no partial media set can ever be
// attached to a message.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]model.Part, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := u.Check(files); err != nil {
		return nil, err
	}

	parts := make([]model.Part, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			url, err := u.uploadOne(gctx, f)
			if err != nil {
				return &UploadError{Filename: f.Name, Cause: err}
			}
			parts[i] = model.NewMediaPart(url, f.ContentType)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// uploadOne requests a write target for one file and PUTs the bytes to it,
// returning the durable URL.
func (u *Uploader) uploadOne(ctx context.Context, f File) (string, error) {
	target, err := u.issuer.CreateUploadTarget(ctx, f.Name, f.ContentType)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, bytes.NewReader(f.Content))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", f.ContentType)
	req.ContentLength = int64(len(f.Content))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("storage returned %s", resp.Status)
	}
	return target.PublicURL, nil
}
