package event

import "io"

// WriteFragmented appends the event, splitting payloads larger than
// MaxPayloadSize into consecutive bounded events. Only the first
// fragment carries the real include-in-index, random-access, and
// discontinuity flags; continuations force all three to false, since a
// continuation is not an independent decode point and must not re-arm
// discontinuity handling downstream. Fragments are never reassembled by
// this layer.
func WriteFragmented(w io.Writer, ev Event) error {
	return writeFragments(w, ev, MaxPayloadSize)
}

func writeFragments(w io.Writer, ev Event, maxPayload int) error {
	if len(ev.Payload) <= maxPayload {
		return Write(w, ev)
	}

	pos := 0
	for pos < len(ev.Payload) {
		length := min(len(ev.Payload)-pos, maxPayload)
		chunk := Event{
			Timestamp: ev.Timestamp,
			Payload:   ev.Payload[pos : pos+length],
		}
		if pos == 0 {
			chunk.IncludeInIndex = ev.IncludeInIndex
			chunk.RandomAccess = ev.RandomAccess
			chunk.Discontinuity = ev.Discontinuity
		}
		if err := Write(w, chunk); err != nil {
			return err
		}
		pos += length
	}
	return nil
}
