// Package event frames pipeline buffers as length-prefixed events on the
// data stream.
//
// Each event carries the canonical timestamp and three flags: whether the
// buffer was indexed, whether it is a random-access point, and whether it
// starts a discontinuity. Events are bounded by MaxEventSize, the largest
// unit the stream appends atomically; larger payloads are fragmented by
// WriteFragmented.
package event

import (
	"encoding/binary"
	"errors"
	"io"

	"streamvault/mediatime"
)

const (
	typeCode = uint16(0x0001)

	flagIncludeInIndex = uint16(1 << 0)
	flagRandomAccess   = uint16(1 << 1)
	flagDiscontinuity  = uint16(1 << 2)

	typeCodeBytes   = 2
	flagsBytes      = 2
	payloadLenBytes = 4
	timestampBytes  = 8

	// HeaderSize is the fixed event header length.
	HeaderSize = typeCodeBytes + flagsBytes + payloadLenBytes + timestampBytes

	// MaxEventSize bounds a single atomic write to the data stream.
	MaxEventSize = 8 * 1024 * 1024

	// MaxPayloadSize is the largest payload a single event can carry.
	MaxPayloadSize = MaxEventSize - HeaderSize

	// noneTimestamp encodes an invalid timestamp on the wire.
	noneTimestamp = ^uint64(0)
)

var (
	ErrPayloadTooLarge = errors.New("event payload exceeds max atomic write size")
	ErrTypeMismatch    = errors.New("event type code mismatch")
)

// Event is one framed unit on the data stream.
type Event struct {
	Timestamp      mediatime.Timestamp
	IncludeInIndex bool
	RandomAccess   bool
	Discontinuity  bool
	Payload        []byte
}

// Encode frames a single event. The payload must fit in one atomic write.
func Encode(ev Event) ([]byte, error) {
	if len(ev.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	var flags uint16
	if ev.IncludeInIndex {
		flags |= flagIncludeInIndex
	}
	if ev.RandomAccess {
		flags |= flagRandomAccess
	}
	if ev.Discontinuity {
		flags |= flagDiscontinuity
	}

	ts := noneTimestamp
	if nanos, ok := ev.Timestamp.Nanoseconds(); ok {
		ts = nanos
	}

	buf := make([]byte, HeaderSize+len(ev.Payload))
	cursor := 0
	binary.LittleEndian.PutUint16(buf[cursor:], typeCode)
	cursor += typeCodeBytes
	binary.LittleEndian.PutUint16(buf[cursor:], flags)
	cursor += flagsBytes
	binary.LittleEndian.PutUint32(buf[cursor:], uint32(len(ev.Payload)))
	cursor += payloadLenBytes
	binary.LittleEndian.PutUint64(buf[cursor:], ts)
	cursor += timestampBytes
	copy(buf[cursor:], ev.Payload)

	return buf, nil
}

// Write frames and appends a single event.
func Write(w io.Writer, ev Event) error {
	buf, err := Encode(ev)
	if err != nil {
		return err
	}
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// Read decodes one event from the reader.
func Read(r io.Reader) (Event, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Event{}, err
	}

	cursor := 0
	if binary.LittleEndian.Uint16(hdr[cursor:]) != typeCode {
		return Event{}, ErrTypeMismatch
	}
	cursor += typeCodeBytes
	flags := binary.LittleEndian.Uint16(hdr[cursor:])
	cursor += flagsBytes
	payloadLen := binary.LittleEndian.Uint32(hdr[cursor:])
	cursor += payloadLenBytes
	ts := binary.LittleEndian.Uint64(hdr[cursor:])

	ev := Event{
		IncludeInIndex: flags&flagIncludeInIndex != 0,
		RandomAccess:   flags&flagRandomAccess != 0,
		Discontinuity:  flags&flagDiscontinuity != 0,
	}
	if ts != noneTimestamp {
		ev.Timestamp = mediatime.FromTAINanos(ts)
	}

	if payloadLen > 0 {
		ev.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, ev.Payload); err != nil {
			return Event{}, err
		}
	}
	return ev, nil
}
