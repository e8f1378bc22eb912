package index

import (
	"fmt"

	"streamvault/bytestream"
)

// Writer appends records to an index stream, enforcing nondecreasing
// timestamps and strictly increasing offsets across the records it writes.
type Writer struct {
	stream bytestream.Writer
	last   Record
	wrote  bool
}

func NewWriter(stream bytestream.Writer) *Writer {
	return &Writer{stream: stream}
}

// Append encodes the record and writes it to the index stream. The data
// stream bytes the record points at must already be flushed, otherwise a
// reader could follow the index to an offset that does not exist yet.
func (w *Writer) Append(r Record) error {
	if w.wrote {
		if r.Timestamp.Before(w.last.Timestamp) {
			return ErrTimestampOutOfOrder
		}
		if r.Offset <= w.last.Offset {
			return ErrOffsetOutOfOrder
		}
	}

	var buf [RecordSize]byte
	if err := encodeRecord(buf[:], r); err != nil {
		return err
	}
	if _, err := w.stream.Write(buf[:]); err != nil {
		return fmt.Errorf("append index record: %w", err)
	}
	w.last = r
	w.wrote = true
	return nil
}

// Flush forces appended records to durable storage.
func (w *Writer) Flush() error {
	return w.stream.Flush()
}
