package sink

import (
	"bufio"

	"streamvault/bytestream"
)

// countingWriter buffers appends to a stream and tracks the logical offset
// including bytes still sitting in the buffer, so the offset captured
// before a write is exactly where that write will land.
type countingWriter struct {
	stream bytestream.Writer
	buf    *bufio.Writer
	offset uint64
}

func newCountingWriter(stream bytestream.Writer, size int) *countingWriter {
	return &countingWriter{
		stream: stream,
		buf:    bufio.NewWriterSize(stream, size),
		offset: stream.Offset(),
	}
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.offset += uint64(n)
	return n, err
}

// Offset is the logical append position, buffered bytes included.
func (w *countingWriter) Offset() uint64 { return w.offset }

// Flush drains the buffer and pushes the stream's durability barrier.
func (w *countingWriter) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.stream.Flush()
}

func (w *countingWriter) TruncateBefore(off uint64) error {
	return w.stream.TruncateBefore(off)
}

// Seal flushes buffered bytes first so nothing is lost behind the seal.
func (w *countingWriter) Seal() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.stream.Seal()
}

func (w *countingWriter) Close() error {
	flushErr := w.buf.Flush()
	if err := w.stream.Close(); err != nil {
		return err
	}
	return flushErr
}

var _ bytestream.Writer = (*countingWriter)(nil)
