// Copyright (c) 2025 KlairVoyant
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"strings"
	"testing"
)

// =============================================================================
// LINE DECODER TESTS
// =============================================================================

func TestLineDecoderSingleChunk(t *testing.T) {
	dec := NewLineDecoder()

	lines := dec.Feed([]byte(`{"response":"a"}` + "\n" + `{"response":"b"}` + "\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Response != "a" || lines[1].Response != "b" {
		t.Errorf("lines = %+v", lines)
	}
	if dec.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", dec.Pending())
	}
}

// Framing must not depend on where chunk boundaries fall, including splits
// in the middle of a line.
func TestLineDecoderBoundaryIndependence(t *testing.T) {
	const stream = `{"response":"a"}` + "\n" + `{"response":"b"}` + "\n"

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		dec := NewLineDecoder()
		var got []string
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			for _, line := range dec.Feed([]byte(stream[i:end])) {
				got = append(got, line.Response)
			}
		}

		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Fatalf("chunkSize %d: got %v, want [a b]", chunkSize, got)
		}
	}
}

func TestLineDecoderMalformedLineSkipped(t *testing.T) {
	dec := NewLineDecoder()
	dec.OnMalformed = func(string) {}

	lines := dec.Feed([]byte(`{"response":"a"}` + "\n" + "not-json\n" + `{"response":"b"}` + "\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Response != "a" || lines[1].Response != "b" {
		t.Errorf("lines = %+v", lines)
	}
	if dec.Malformed() != 1 {
		t.Errorf("Malformed = %d, want 1", dec.Malformed())
	}
}

func TestLineDecoderEmptyLinesSkipped(t *testing.T) {
	dec := NewLineDecoder()

	lines := dec.Feed([]byte("\n\n" + `{"response":"a"}` + "\n\n"))
	if len(lines) != 1 || lines[0].Response != "a" {
		t.Errorf("lines = %+v, want single response a", lines)
	}
}

// A chunk carrying a complete line plus the start of the next one must not
// let the retained tail clobber the completed line.
func TestLineDecoderCompleteLineWithPartialTail(t *testing.T) {
	dec := NewLineDecoder()
	dec.OnMalformed = func(line string) {
		t.Errorf("unexpected malformed line %q", line)
	}

	lines := dec.Feed([]byte(`{"response":"ab"}` + "\n" + `{"res`))
	if len(lines) != 1 || lines[0].Response != "ab" {
		t.Fatalf("lines = %+v, want single response ab", lines)
	}
	if dec.Pending() != 5 {
		t.Errorf("Pending = %d, want 5", dec.Pending())
	}

	lines = dec.Feed([]byte(`ponse":"c"}` + "\n"))
	if len(lines) != 1 || lines[0].Response != "c" {
		t.Fatalf("lines = %+v, want the completed tail as response c", lines)
	}
}

func TestLineDecoderBuffersPartialTail(t *testing.T) {
	dec := NewLineDecoder()

	if lines := dec.Feed([]byte(`{"respo`)); len(lines) != 0 {
		t.Fatalf("partial line yielded %d lines", len(lines))
	}
	if dec.Pending() == 0 {
		t.Error("expected pending bytes for partial line")
	}

	lines := dec.Feed([]byte(`nse":"a"}` + "\n"))
	if len(lines) != 1 || lines[0].Response != "a" {
		t.Errorf("lines = %+v", lines)
	}
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReaderProcess(t *testing.T) {
	body := `{"response":"Hel"}` + "\n" + `{"response":"lo"}` + "\n"
	reader := NewStreamReader(strings.NewReader(body))

	var got strings.Builder
	err := reader.Process(context.Background(), func(fragment string) {
		got.WriteString(fragment)
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.String() != "Hello" {
		t.Errorf("assembled %q, want Hello", got.String())
	}
}

func TestStreamReaderMalformedLineTolerated(t *testing.T) {
	body := `{"response":"a"}` + "\n" + "not-json\n" + `{"response":"b"}` + "\n"
	reader := NewStreamReader(strings.NewReader(body))
	reader.Decoder().OnMalformed = func(string) {}

	var got strings.Builder
	if err := reader.Process(context.Background(), func(f string) { got.WriteString(f) }); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.String() != "ab" {
		t.Errorf("assembled %q, want ab", got.String())
	}
	if reader.Decoder().Malformed() != 1 {
		t.Errorf("Malformed = %d, want 1", reader.Decoder().Malformed())
	}
}

func TestStreamReaderErrorLineIsTerminal(t *testing.T) {
	// Lines after the error are already buffered but must not be processed.
	body := `{"error":"rate limited"}` + "\n" + `{"response":"late"}` + "\n"
	reader := NewStreamReader(strings.NewReader(body))

	var fragments []string
	err := reader.Process(context.Background(), func(f string) {
		fragments = append(fragments, f)
	})

	if !IsStreamError(err) {
		t.Fatalf("err = %v, want stream error", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v, want rate limited message", err)
	}
	if len(fragments) != 0 {
		t.Errorf("fragments after error = %v, want none", fragments)
	}
}

func TestStreamReaderDiscardsUnterminatedTail(t *testing.T) {
	body := `{"response":"a"}` + "\n" + `{"response":"never finished`
	reader := NewStreamReader(strings.NewReader(body))

	var got strings.Builder
	if err := reader.Process(context.Background(), func(f string) { got.WriteString(f) }); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.String() != "a" {
		t.Errorf("assembled %q, want a", got.String())
	}
}

func TestStreamReaderObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewStreamReader(strings.NewReader(`{"response":"a"}` + "\n"))
	var fragments int
	err := reader.Process(ctx, func(string) { fragments++ })

	if !IsCanceled(err) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if fragments != 0 {
		t.Errorf("fragments after cancel = %d, want 0", fragments)
	}
}

// errReader yields some data then a non-EOF error.
type errReader struct {
	data []byte
	err  error
	done bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func TestStreamReaderReadFailure(t *testing.T) {
	reader := NewStreamReader(&errReader{
		data: []byte(`{"response":"a"}` + "\n"),
		err:  io.ErrUnexpectedEOF,
	})

	var got strings.Builder
	err := reader.Process(context.Background(), func(f string) { got.WriteString(f) })

	if err == nil || IsStreamError(err) {
		t.Fatalf("err = %v, want connection error", err)
	}
	if got.String() != "a" {
		t.Errorf("fragments before failure = %q, want a", got.String())
	}
}
