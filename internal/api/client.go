// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/klairvoyant/raven-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeCredential
	ErrTypeConnection
	ErrTypeStatus
	ErrTypeInvalidResponse
	ErrTypeStream
)

// Sentinel errors for easy checking.
var (
	ErrNoCredential = &ClientError{Type: ErrTypeCredential, Message: "no credential available"}
	ErrNoBody       = &ClientError{Type: ErrTypeConnection, Message: "no response body from server"}
	ErrRateLimited  = &ClientError{Type: ErrTypeStatus, Message: "rate limited"}
)

// IsCanceled reports whether an error is a benign cancellation: an explicit
// abort or a superseded request. Cancellations are never surfaced to the
// user as failures.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsCredentialError checks if an error is a credential acquisition failure.
func IsCredentialError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeCredential
	}
	return false
}

// IsStreamError checks if an error is a terminal error payload delivered on
// an otherwise-successful stream.
func IsStreamError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeStream
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// CredentialProvider returns a bearer credential for one request. It is
// called fresh per request; the client never caches tokens across calls.
type CredentialProvider func(ctx context.Context) (string, error)

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://localhost:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// MaxRetries for transient failures on non-streaming requests
	// (default: 3). The streaming chat call is never retried.
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff (default: 500ms)
	RetryBaseDelay time.Duration

	// RequestsPerSecond caps outbound request rate (default: 5)
	RequestsPerSecond float64

	// Burst is the rate limiter burst size (default: 10)
	Burst int

	// UserAgent sent with every request
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://localhost:8000",
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryBaseDelay:    500 * time.Millisecond,
		RequestsPerSecond: 5,
		Burst:             10,
		UserAgent:         "raven-tui/0.1.0",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Raven backend. It is stateless per
// call: single-flight semantics for chat generation are enforced by the
// session layer, which owns the cancellation token for each stream.
//
// The Client is safe for concurrent use.
type Client struct {
	config *ClientConfig
	creds  CredentialProvider

	// httpClient serves unary requests with a timeout; streamClient has no
	// timeout because stream lifetime is controlled via context.
	httpClient   *http.Client
	streamClient *http.Client

	limiter *rate.Limiter
}

// NewClient creates a backend client with the given credential provider.
func NewClient(creds CredentialProvider, config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 5
	}
	if config.Burst == 0 {
		config.Burst = 10
	}
	if config.UserAgent == "" {
		config.UserAgent = "raven-tui/0.1.0"
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		config: config,
		creds:  creds,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Token acquires a fresh bearer credential. Callers submitting a chat
// acquire the token before any optimistic state change so a failed
// acquisition leaves nothing to roll back.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", ErrNoCredential
	}
	token, err := c.creds(ctx)
	if err != nil {
		return "", &ClientError{Type: ErrTypeCredential, Message: "failed to acquire credential", Cause: err}
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// wireMessage is the outbound message representation. Part reuses the model
// encoding: {"text": ..., "type": ..., "mimeType": ...}.
type wireMessage struct {
	Role  model.Role   `json:"role"`
	Parts []model.Part `json:"parts"`
}

// chatRequest is the body of POST /chat.
type chatRequest struct {
	Messages []wireMessage `json:"messages"`
	ChatID   *string       `json:"chatId"`
}

// streamLine is one decoded line of the streaming response body.
type streamLine struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// errorDetail is the body of a non-2xx response.
type errorDetail struct {
	Detail string `json:"detail"`
}

func toWire(messages []*model.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, wireMessage{Role: msg.Role, Parts: msg.Parts})
	}
	return out
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamChat opens a streaming chat exchange and invokes onFragment for each
// incremental text fragment, in arrival order, until the stream ends.
//
// The token is passed in by the caller (see Token) so the credential is
// acquired before any optimistic state exists. A context cancellation stops
// the read loop promptly and is returned as-is; callers classify it with
// IsCanceled. A terminal {"error": ...} line is returned as a stream error
// and no further lines are processed.
func (c *Client) StreamChat(ctx context.Context, token string, messages []*model.Message, chatID string, onFragment func(string)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqBody := chatRequest{Messages: toWire(messages)}
	if chatID != "" {
		reqBody.ChatID = &chatID
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(req, token)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ClientError{Type: ErrTypeConnection, Message: "chat request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	if resp.Body == nil {
		return ErrNoBody
	}

	reader := NewStreamReader(resp.Body)
	return reader.Process(ctx, onFragment)
}

// =============================================================================
// UNARY REQUESTS
// =============================================================================

// maxResponseSize caps unary response bodies read into memory.
const maxResponseSize = 10 * 1024 * 1024

// do performs a unary JSON request with retry and exponential backoff for
// transient failures (5xx and 429). A fresh credential is acquired per
// attempt. When out is non-nil the response body is decoded into it.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		token, err := c.Token(ctx)
		if err != nil {
			return err
		}

		var reqBody io.Reader
		if encoded != nil {
			reqBody = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
		if err != nil {
			return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
		}
		c.setHeaders(req, token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = c.statusError(resp)
			resp.Body.Close()
			continue
		}

		err = c.finish(resp, out)
		resp.Body.Close()
		return err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// finish consumes a non-retryable response: decodes errors for non-2xx
// statuses and unmarshals the body into out otherwise.
func (c *Client) finish(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// statusError converts a non-success HTTP response into a descriptive typed
// error, preferring the backend's {"detail": ...} message when present.
func (c *Client) statusError(resp *http.Response) error {
	data, _ := readResponse(resp)

	var detail errorDetail
	if err := json.Unmarshal(data, &detail); err == nil && detail.Detail != "" {
		return &ClientError{
			Type:    ErrTypeStatus,
			Message: detail.Detail,
		}
	}
	return &ClientError{
		Type:    ErrTypeStatus,
		Message: "request failed: " + resp.Status,
	}
}

// readResponse reads a response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to read response", Cause: err}
	}
	if int64(len(data)) == maxResponseSize {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "response exceeded maximum size"}
	}
	return data, nil
}

// backoff returns the delay to wait before the given retry attempt.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
	const maxDelay = 10 * time.Second
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// =============================================================================
// MEDIA UPLOAD TARGETS
// =============================================================================

// UploadTarget is a pre-signed write target issued by the backend for one
// file. URL accepts a PUT with the raw bytes; PublicURL is the durable URL
// recorded on the message part.
type UploadTarget struct {
	URL       string `json:"url"`
	PublicURL string `json:"gcs_url"`
}

// CreateUploadTarget requests a pre-signed upload target for one file.
func (c *Client) CreateUploadTarget(ctx context.Context, filename, contentType string) (UploadTarget, error) {
	body := struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
	}{Filename: filename, ContentType: contentType}

	var target UploadTarget
	if err := c.do(ctx, http.MethodPost, "/api/upload-url", body, &target); err != nil {
		return UploadTarget{}, err
	}
	if target.URL == "" {
		return UploadTarget{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "upload target missing url"}
	}
	return target, nil
}
