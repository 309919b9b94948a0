package stream

import (
	"strings"

	"github.com/fpang/compliance-media-cli/internal/jsonutil"
	"github.com/rs/zerolog/log"
)

// Kind is the discriminator tag on a streaming event.
type Kind string

const (
	KindThinking Kind = "thinking"
	KindText     Kind = "text"
	KindTool     Kind = "tool"
	KindComplete Kind = "complete"
)

// Event is one decoded streaming event. Events are transient: produced by the
// decoder and consumed immediately by the step reducer, never persisted.
type Event struct {
	Kind    Kind
	Content string
}

// knownKind reports whether s is one of the four wire kinds.
func knownKind(s string) bool {
	switch Kind(s) {
	case KindThinking, KindText, KindTool, KindComplete:
		return true
	}
	return false
}

// DecodeSSE decodes one SSE-form record: "data:<kind>:<content>". The
// boolean reports whether the record produced an event. Records without the
// data: prefix, without a colon, or with an unrecognized kind are silently
// discarded; keep-alive and control records are expected on the wire.
//
// Only whitespace before the prefix and between the prefix and the kind is
// stripped. Content after the kind's colon passes through verbatim, trailing
// whitespace included: text tokens coalesce by raw concatenation, so a
// trimmed trailing space would fuse adjacent words.
func DecodeSSE(record string) (Event, bool) {
	record = strings.TrimLeft(record, " \t\r\n")
	if !strings.HasPrefix(record, "data:") {
		return Event{}, false
	}
	rest := strings.TrimLeft(strings.TrimPrefix(record, "data:"), " \t")

	idx := strings.Index(rest, ":")
	if idx < 0 {
		return Event{}, false
	}

	kind := rest[:idx]
	if !knownKind(kind) {
		log.Debug().Str("kind", kind).Msg("Discarding record with unrecognized event kind")
		return Event{}, false
	}

	return Event{Kind: Kind(kind), Content: rest[idx+1:]}, true
}

// plainRecord is the JSON shape of the newline-delimited batch variant.
type plainRecord struct {
	Type    *string `json:"type"`
	Content *string `json:"content"`
}

// DecodePlain decodes one plain-form record. The record is first attempted
// as a JSON object carrying both "type" and "content"; anything else with
// non-whitespace content becomes a Text event wrapping the record verbatim.
// Decoding never fails: unparsable input falls back to raw text.
func DecodePlain(record string) (Event, bool) {
	if rec, ok := jsonutil.TryParse[plainRecord](record); ok && rec.Type != nil && rec.Content != nil {
		if knownKind(*rec.Type) {
			return Event{Kind: Kind(*rec.Type), Content: *rec.Content}, true
		}
	}

	if strings.TrimSpace(record) == "" {
		return Event{}, false
	}
	return Event{Kind: KindText, Content: record}, true
}
