// Package bytestream provides append-only, truncatable byte streams.
//
// A stream is an unbounded sequence of bytes addressed by a logical
// offset that is stable for the lifetime of the stream: appends advance
// the tail, truncation advances the head, and offsets never shift.
// Reads below the head fail with ErrTruncated.
//
// Writers and readers are independently instantiable handles over the
// same stream. The supported concurrent access pattern is one appending
// writer plus any number of readers plus one truncating handle, where
// truncation always targets offsets strictly behind the append position.
package bytestream

import (
	"errors"
	"io"
)

var (
	ErrMissingDir         = errors.New("store dir is required")
	ErrInvalidName        = errors.New("invalid scope or stream name")
	ErrStreamNotFound     = errors.New("stream not found")
	ErrSealed             = errors.New("stream is sealed")
	ErrTruncated          = errors.New("offset is before the stream head")
	ErrTruncateBeyondTail = errors.New("truncate offset is beyond the stream tail")
)

// Writer is an append-only handle to a stream.
type Writer interface {
	io.Writer

	// Offset returns the logical offset at which the next Write will land.
	Offset() uint64

	// Flush is a durability barrier: data written before Flush returns is
	// readable by any reader handle and survives a crash.
	Flush() error

	// TruncateBefore makes all bytes below off unreadable and eligible for
	// space reclamation. The head never moves backward; truncating at or
	// below the current head is a no-op.
	TruncateBefore(off uint64) error

	// Seal makes the stream permanently append-proof. Truncation of a
	// sealed stream remains allowed.
	Seal() error

	Close() error
}

// Reader is a positioned read handle to a stream.
type Reader interface {
	// HeadOffset returns the first readable logical offset.
	HeadOffset() (uint64, error)

	// TailOffset returns the logical offset one past the last durable byte.
	TailOffset() (uint64, error)

	// ReadAt reads len(p) bytes at the logical offset off.
	ReadAt(p []byte, off uint64) (int, error)

	Close() error
}
