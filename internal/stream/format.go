package stream

// Format selects the wire convention of a producing stream: the SSE form
// used by the compliance check endpoints, or the newline-delimited plain
// form used by the internal batch variant.
type Format int

const (
	FormatSSE Format = iota
	FormatPlain
)

// Delimiter returns the record delimiter for the format.
func (f Format) Delimiter() string {
	if f == FormatPlain {
		return PlainDelimiter
	}
	return SSEDelimiter
}

// Decode decodes one record according to the format's convention.
func (f Format) Decode(record string) (Event, bool) {
	if f == FormatPlain {
		return DecodePlain(record)
	}
	return DecodeSSE(record)
}
