// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for communicating with the Raven
// backend.
//
// The client covers three concerns:
//
//   - the streaming chat exchange (POST /chat), whose newline-delimited JSON
//     body is decoded incrementally by StreamReader/LineDecoder;
//   - chat record CRUD and history loading (/api/chats...);
//   - pre-signed upload target issuance for media files (/api/upload-url).
//
// Every request carries a bearer credential acquired fresh from the injected
// CredentialProvider. Unary requests retry transient failures with
// exponential backoff; the streaming call is never retried and its lifetime
// is controlled entirely by the caller's context.
package api
