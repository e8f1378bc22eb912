// Package index maintains the secondary index stream: fixed-size records
// mapping canonical timestamps to data stream offsets.
//
// Records are appended in nondecreasing timestamp and offset order, so the
// index supports binary search by time and by size. A record at offset O
// means every byte before O on the data stream belongs to earlier buffers,
// which lets truncation cut both streams at a record boundary.
package index

import (
	"encoding/binary"
	"errors"

	"streamvault/mediatime"
)

const (
	magicByte   = byte(0xA5)
	versionByte = byte(0x01)

	flagRandomAccess  = byte(1 << 0)
	flagDiscontinuity = byte(1 << 1)

	// RecordSize is the fixed on-stream record length.
	RecordSize = 20
)

var (
	ErrRecordTooSmall      = errors.New("index record buffer too small")
	ErrMagicMismatch       = errors.New("index record magic mismatch")
	ErrVersionMismatch     = errors.New("index record version mismatch")
	ErrMissingTimestamp    = errors.New("index record requires a valid timestamp")
	ErrTimestampOutOfOrder = errors.New("index record timestamp precedes previous record")
	ErrOffsetOutOfOrder    = errors.New("index record offset must exceed previous record")
)

// Record maps a canonical timestamp to a data stream offset. Offset points
// at the first byte of the indexed event, so reading from Offset yields a
// decodable stream position.
type Record struct {
	Timestamp     mediatime.Timestamp
	Offset        uint64
	RandomAccess  bool
	Discontinuity bool
}

func encodeRecord(buf []byte, r Record) error {
	if len(buf) < RecordSize {
		return ErrRecordTooSmall
	}
	nanos, ok := r.Timestamp.Nanoseconds()
	if !ok {
		return ErrMissingTimestamp
	}

	var flags byte
	if r.RandomAccess {
		flags |= flagRandomAccess
	}
	if r.Discontinuity {
		flags |= flagDiscontinuity
	}

	buf[0] = magicByte
	buf[1] = versionByte
	buf[2] = flags
	buf[3] = 0
	binary.LittleEndian.PutUint64(buf[4:], nanos)
	binary.LittleEndian.PutUint64(buf[12:], r.Offset)
	return nil
}

func decodeRecord(buf []byte) (Record, error) {
	if len(buf) < RecordSize {
		return Record{}, ErrRecordTooSmall
	}
	if buf[0] != magicByte {
		return Record{}, ErrMagicMismatch
	}
	if buf[1] != versionByte {
		return Record{}, ErrVersionMismatch
	}
	flags := buf[2]
	return Record{
		Timestamp:     mediatime.FromTAINanos(binary.LittleEndian.Uint64(buf[4:])),
		Offset:        binary.LittleEndian.Uint64(buf[12:]),
		RandomAccess:  flags&flagRandomAccess != 0,
		Discontinuity: flags&flagDiscontinuity != 0,
	}, nil
}

// StreamName derives the index stream name from its data stream name.
func StreamName(dataStream string) string {
	return dataStream + "-index"
}
