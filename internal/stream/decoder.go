// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/util"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the read size used by Process when none is configured.
const DefaultChunkSize = 4096

// previewWidth bounds how much of a malformed line is logged.
const previewWidth = 120

// =============================================================================
// EVENTS
// =============================================================================

// EventKind distinguishes the two event variants.
type EventKind int

const (
	// EventFragment carries a piece of response text to append.
	EventFragment EventKind = iota
	// EventTerminal carries final generation metrics.
	EventTerminal
)

func (k EventKind) String() string {
	if k == EventTerminal {
		return "terminal"
	}
	return "fragment"
}

// Event is one decoded stream record.
type Event struct {
	Kind EventKind
	// Text is set for fragments.
	Text string
	// Metrics is set for terminal events.
	Metrics *model.Metrics
}

// Fragment returns a fragment event.
func Fragment(text string) Event {
	return Event{Kind: EventFragment, Text: text}
}

// Terminal returns a terminal event.
func Terminal(m *model.Metrics) Event {
	return Event{Kind: EventTerminal, Metrics: m}
}

// IsTerminal reports whether e carries final metrics.
func (e Event) IsTerminal() bool {
	return e.Kind == EventTerminal
}

// record is the subset of a backend stream line the decoder reads.
type record struct {
	Response           string          `json:"response"`
	Done               bool            `json:"done"`
	TotalDuration      int64           `json:"total_duration"`
	LoadDuration       int64           `json:"load_duration"`
	PromptEvalCount    int             `json:"prompt_eval_count"`
	PromptEvalDuration int64           `json:"prompt_eval_duration"`
	EvalCount          int             `json:"eval_count"`
	EvalDuration       int64           `json:"eval_duration"`
	Context            json.RawMessage `json:"context"`
}

func (r *record) metrics() *model.Metrics {
	m := &model.Metrics{
		TotalDuration:      r.TotalDuration,
		LoadDuration:       r.LoadDuration,
		PromptEvalCount:    r.PromptEvalCount,
		PromptEvalDuration: r.PromptEvalDuration,
		EvalCount:          r.EvalCount,
		EvalDuration:       r.EvalDuration,
	}
	if len(r.Context) > 0 && !bytes.Equal(r.Context, []byte("null")) {
		m.Context = append(json.RawMessage(nil), r.Context...)
	}
	return m
}

// =============================================================================
// STATS
// =============================================================================

// Stats counts what a decoder has seen since it was created or last reset.
type Stats struct {
	Bytes     int
	Lines     int
	Fragments int
	Terminals int
	Malformed int
}

// =============================================================================
// DECODER
// =============================================================================

// DecoderConfig holds options for a Decoder.
type DecoderConfig struct {
	// ChunkSize is the read size used by Process (default: 4096).
	ChunkSize int
	// Logger receives malformed-line diagnostics at debug level.
	Logger *slog.Logger
}

// Decoder turns a newline-delimited JSON byte stream into ordered events.
//
// Bytes may arrive split at any position, including inside a line or inside
// a multi-byte UTF-8 sequence; the decoded events do not depend on where the
// splits fall. Blank lines are skipped. Lines that fail to parse are logged
// and counted but never surface as events. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	chunkSize int
	logger    *slog.Logger

	utf8      transform.Transformer
	carry     []byte // undecoded tail of the last chunk, at most one partial rune
	remainder []byte // decoded text after the last newline
	scratch   []byte

	stats Stats
}

// NewDecoder creates a Decoder. A nil config uses defaults.
func NewDecoder(cfg *DecoderConfig) *Decoder {
	d := &Decoder{
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
		scratch:   make([]byte, 1024),
	}
	if cfg != nil {
		if cfg.ChunkSize > 0 {
			d.chunkSize = cfg.ChunkSize
		}
		if cfg.Logger != nil {
			d.logger = cfg.Logger
		}
	}
	d.Reset()
	return d
}

// Reset discards buffered input and counters so the decoder can be reused.
func (d *Decoder) Reset() {
	// UTF8BOM strips one leading byte order mark and replaces invalid
	// sequences with U+FFFD.
	d.utf8 = unicode.UTF8BOM.NewDecoder()
	d.carry = d.carry[:0]
	d.remainder = d.remainder[:0]
	d.stats = Stats{}
}

// Stats returns the counters accumulated so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Pending reports whether a partial line or partial rune is buffered.
func (d *Decoder) Pending() bool {
	return len(d.carry) > 0 || len(d.remainder) > 0
}

// Feed consumes one chunk and returns the events completed by it, in order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.stats.Bytes += len(chunk)
	d.decodeText(chunk, false)
	return d.drainLines(nil)
}

// Finish flushes the decoder at end of stream. The trailing partial line is
// parsed once more and yields an event only if it is a terminal record.
// Buffers are cleared afterwards; Stats are kept until Reset.
func (d *Decoder) Finish() []Event {
	d.decodeText(nil, true)
	events := d.drainLines(nil)

	if line := bytes.TrimSpace(d.remainder); len(line) > 0 {
		if ev, ok := d.parseLine(line); ok && ev.IsTerminal() {
			events = append(events, ev)
		}
	}

	d.utf8.Reset()
	d.carry = d.carry[:0]
	d.remainder = d.remainder[:0]
	return events
}

// Decode is a convenience that feeds data as a single chunk and finishes.
func (d *Decoder) Decode(data []byte) []Event {
	events := d.Feed(data)
	return append(events, d.Finish()...)
}

// Process reads r in chunks and calls fn for every event in stream order.
// It returns nil after a clean end of stream (having called Finish), the
// context's error if ctx is done between reads, or the read error. On error
// the trailing partial line is left unparsed.
func (d *Decoder) Process(ctx context.Context, r io.Reader, fn func(Event)) error {
	buf := make([]byte, d.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range d.Feed(buf[:n]) {
				fn(ev)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				for _, ev := range d.Finish() {
					fn(ev)
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// decodeText runs src through the UTF-8 transformer and appends the result
// to the line remainder. Bytes of an incomplete rune are carried over to the
// next call unless atEOF is set.
func (d *Decoder) decodeText(src []byte, atEOF bool) {
	if len(d.carry) > 0 {
		src = append(d.carry, src...)
	}

	for {
		nDst, nSrc, err := d.utf8.Transform(d.scratch, src, atEOF)
		d.remainder = append(d.remainder, d.scratch[:nDst]...)
		src = src[nSrc:]

		switch err {
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			d.carry = append(d.carry[:0], src...)
			return
		default:
			d.carry = d.carry[:0]
			return
		}
	}
}

// drainLines parses every complete line in the remainder and keeps the
// unterminated tail.
func (d *Decoder) drainLines(events []Event) []Event {
	start := 0
	for {
		i := bytes.IndexByte(d.remainder[start:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(d.remainder[start : start+i])
		start += i + 1

		if len(line) == 0 {
			continue
		}
		if ev, ok := d.parseLine(line); ok {
			events = append(events, ev)
		}
	}

	if start > 0 {
		n := copy(d.remainder, d.remainder[start:])
		d.remainder = d.remainder[:n]
	}
	return events
}

// parseLine converts one non-blank line into an event. ok is false for
// malformed lines and for records that carry nothing to apply.
func (d *Decoder) parseLine(line []byte) (Event, bool) {
	d.stats.Lines++

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		d.stats.Malformed++
		d.logger.Debug("skipping malformed stream line",
			"error", err,
			"preview", util.TruncateWidth(string(line), previewWidth))
		return Event{}, false
	}

	if rec.Done {
		d.stats.Terminals++
		return Terminal(rec.metrics()), true
	}
	if rec.Response != "" {
		d.stats.Fragments++
		return Fragment(rec.Response), true
	}
	return Event{}, false
}
