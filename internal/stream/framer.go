// Package stream implements the streaming-event reconciliation engine for
// compliance analysis responses: framing raw chunked bytes into records,
// decoding records into typed events, folding events into coalesced steps,
// and resolving the final result once the stream completes.
package stream

import (
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// SSEDelimiter separates records in the server's event-stream responses.
	SSEDelimiter = "\n\n"

	// PlainDelimiter separates records in the newline-delimited batch variant.
	PlainDelimiter = "\n"
)

// Framer turns a raw byte stream into discrete, delimiter-terminated records.
// Chunk boundaries carry no meaning: a record may span many reads, and one
// read may carry many records. The framer buffers the trailing partial record
// across reads and never emits an incomplete one.
//
// Each stream owns its own Framer; the buffer is never shared across files.
type Framer struct {
	r       io.Reader
	delim   string
	buf     strings.Builder
	pending []string
	chunk   []byte
	err     error
	drained bool
}

// NewFramer wraps r with the given record delimiter.
func NewFramer(r io.Reader, delim string) *Framer {
	return &Framer{
		r:     r,
		delim: delim,
		chunk: make([]byte, 4096),
	}
}

// Next returns the next complete record. It returns io.EOF once the stream is
// exhausted; a non-whitespace tail left in the buffer at end of stream is
// emitted as one final record before EOF. Any read error other than EOF is
// fatal to this stream and returned as-is.
func (f *Framer) Next() (string, error) {
	for {
		if len(f.pending) > 0 {
			rec := f.pending[0]
			f.pending = f.pending[1:]
			if rec == "" {
				continue
			}
			return rec, nil
		}

		if f.err != nil {
			if f.err == io.EOF && !f.drained {
				f.drained = true
				tail := f.buf.String()
				f.buf.Reset()
				if strings.TrimSpace(tail) != "" {
					// The server normally closes right after its last
					// delimiter, but a bare tail is still a valid record.
					log.Debug().Int("bytes", len(tail)).Msg("Emitting undelimited stream tail as final record")
					return tail, nil
				}
			}
			return "", f.err
		}

		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.buf.Write(f.chunk[:n])
			parts := strings.Split(f.buf.String(), f.delim)
			f.buf.Reset()
			// The last piece may be the prefix of a record whose suffix has
			// not arrived; it stays buffered.
			f.buf.WriteString(parts[len(parts)-1])
			f.pending = parts[:len(parts)-1]
		}
		if err != nil {
			f.err = err
		}
	}
}
