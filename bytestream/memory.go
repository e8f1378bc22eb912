package bytestream

import (
	"io"
	"sync"
)

// MemoryStream is an in-memory stream with the same contract as the
// file-backed implementation. It serves tests and embedded use; a single
// instance backs any number of writer/reader views.
type MemoryStream struct {
	mu     sync.Mutex
	buf    []byte // bytes from head onward
	head   uint64
	tail   uint64
	sealed bool
}

func NewMemoryStream() *MemoryStream {
	return &MemoryStream{}
}

// Writer returns an append handle over the stream.
func (s *MemoryStream) Writer() Writer { return (*memoryHandle)(s) }

// Reader returns an independent read handle over the stream.
func (s *MemoryStream) Reader() Reader { return (*memoryHandle)(s) }

type memoryHandle MemoryStream

func (h *memoryHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return 0, ErrSealed
	}
	h.buf = append(h.buf, p...)
	h.tail += uint64(len(p))
	return len(p), nil
}

func (h *memoryHandle) Offset() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tail
}

func (h *memoryHandle) Flush() error { return nil }

func (h *memoryHandle) TruncateBefore(off uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off <= h.head {
		return nil
	}
	if off > h.tail {
		return ErrTruncateBeyondTail
	}
	h.buf = h.buf[off-h.head:]
	h.head = off
	return nil
}

func (h *memoryHandle) Seal() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sealed = true
	return nil
}

func (h *memoryHandle) HeadOffset() (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head, nil
}

func (h *memoryHandle) TailOffset() (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tail, nil
}

func (h *memoryHandle) ReadAt(p []byte, off uint64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off < h.head {
		return 0, ErrTruncated
	}
	if off >= h.tail {
		return 0, io.EOF
	}
	n := copy(p, h.buf[off-h.head:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (h *memoryHandle) Close() error { return nil }

var _ Writer = (*memoryHandle)(nil)
var _ Reader = (*memoryHandle)(nil)
