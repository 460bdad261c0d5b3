// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// and message parts.
//
// A Message is one turn in a conversation and holds an ordered list of
// Parts. A text part carries literal content; media parts carry the durable
// URL of an uploaded file, classified by MIME major type. The ordered
// message list for one chat is exclusively owned by the active session
// manager.
package model
