// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
)

// =============================================================================
// LINE DECODER
// =============================================================================

// LineDecoder assembles newline-delimited JSON objects from a byte stream
// delivered in arbitrary chunks. Chunk boundaries carry no meaning: a line
// may span many chunks and one chunk may carry many lines. The unterminated
// tail is buffered until a later chunk completes it.
//
// A line that fails to parse is recoverable noise, not a stream-ending
// failure: the peer does not guarantee object-aligned writes. Malformed
// lines are counted, reported through the hook, and skipped.
type LineDecoder struct {
	buf       []byte
	malformed int

	// OnMalformed, when set, is invoked with each undecodable complete line.
	OnMalformed func(line string)
}

// NewLineDecoder creates an empty line decoder.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{}
}

// Feed consumes one chunk and returns every complete line decoded from the
// buffered stream so far, in arrival order. Empty lines are skipped.
func (d *LineDecoder) Feed(chunk []byte) []streamLine {
	d.buf = append(d.buf, chunk...)

	segments := bytes.Split(d.buf, []byte{'\n'})

	var lines []streamLine
	for _, seg := range segments[:len(segments)-1] {
		if len(seg) == 0 {
			continue
		}
		var line streamLine
		if err := json.Unmarshal(seg, &line); err != nil {
			d.malformed++
			if d.OnMalformed != nil {
				d.OnMalformed(string(seg))
			} else {
				log.Printf("stream: skipping malformed line: %.120s", seg)
			}
			continue
		}
		lines = append(lines, line)
	}

	// The final segment is unterminated (possibly empty) and becomes the new
	// buffer. It aliases the old buffer's array, so it must be copied out
	// after all completed segments have been parsed, never over them.
	d.buf = append([]byte(nil), segments[len(segments)-1]...)
	return lines
}

// Pending returns the number of buffered bytes awaiting a newline. At end of
// stream a non-empty buffer is a partial line that was never completed and
// is discarded.
func (d *LineDecoder) Pending() int {
	return len(d.buf)
}

// Malformed returns the number of undecodable lines skipped so far.
func (d *LineDecoder) Malformed() int {
	return d.malformed
}

// =============================================================================
// STREAM READER
// =============================================================================

// readChunkSize is the transport read granularity. The cancellation signal
// is observed once per chunk.
const readChunkSize = 4096

// StreamReader drives a LineDecoder over a response body.
type StreamReader struct {
	r   io.Reader
	dec *LineDecoder
	buf []byte
}

// NewStreamReader creates a stream reader over the given body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		r:   r,
		dec: NewLineDecoder(),
		buf: make([]byte, readChunkSize),
	}
}

// Decoder exposes the underlying line decoder, mainly for inspecting the
// malformed-line count after a stream settles.
func (s *StreamReader) Decoder() *LineDecoder {
	return s.dec
}

// Process reads the stream until end of body, invoking onFragment for each
// incremental text fragment in arrival order.
//
// The context is checked on every chunk; once cancelled no further fragments
// are delivered. An {"error": ...} line is terminal: processing stops
// immediately, even if further lines are already buffered, and the error is
// returned as a stream error. A trailing partial line at EOF is discarded.
func (s *StreamReader) Process(ctx context.Context, onFragment func(string)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := s.r.Read(s.buf)
		if n > 0 {
			for _, line := range s.dec.Feed(s.buf[:n]) {
				if line.Error != "" {
					return &ClientError{Type: ErrTypeStream, Message: line.Error}
				}
				if line.Response != "" {
					onFragment(line.Response)
				}
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ClientError{Type: ErrTypeConnection, Message: "failed to read stream", Cause: readErr}
		}
	}
}
