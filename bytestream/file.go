package bytestream

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
)

// FileWriter is an append handle to a file-backed stream. It tracks the
// tail position in memory; the head offset and sealed flag live in the
// file header so they are shared across handles.
type FileWriter struct {
	f      *os.File
	offset uint64 // logical append position
	sealed bool
}

func openFileWriter(path string, mode os.FileMode) (*FileWriter, error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_RDWR, mode)
	if err != nil {
		return nil, err
	}

	hdr, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if hdr.sealed() {
		_ = f.Close()
		return nil, ErrSealed
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &FileWriter{
		f:      f,
		offset: uint64(info.Size()) - headerSize,
	}, nil
}

// Offset returns the logical offset at which the next Write will land.
func (w *FileWriter) Offset() uint64 { return w.offset }

func (w *FileWriter) Write(p []byte) (int, error) {
	if w.sealed {
		return 0, ErrSealed
	}
	n, err := w.f.Write(p)
	w.offset += uint64(n)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Flush fsyncs the file, making all prior writes durable and visible to
// reader handles.
func (w *FileWriter) Flush() error {
	return w.f.Sync()
}

// TruncateBefore advances the persisted head offset to off and
// hole-punches the reclaimed prefix where the platform supports it.
// The head never moves backward.
func (w *FileWriter) TruncateBefore(off uint64) error {
	hdr, err := readHeader(w.f)
	if err != nil {
		return err
	}
	if off <= hdr.head {
		return nil
	}

	// The tail may have advanced through another handle; validate against
	// the file, not the cached append position.
	info, err := w.f.Stat()
	if err != nil {
		return err
	}
	tail := uint64(info.Size()) - headerSize
	if off > tail {
		return ErrTruncateBeyondTail
	}

	var buf [headOffsetSize]byte
	binary.LittleEndian.PutUint64(buf[:], off)
	if _, err := w.f.WriteAt(buf[:], headOffsetPos); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}

	// Space reclamation is best-effort; the head offset is authoritative.
	punchHole(w.f, int64(headerSize+hdr.head), int64(off-hdr.head))
	return nil
}

// Seal sets the sealed flag, permanently rejecting appends through any
// handle opened afterwards.
func (w *FileWriter) Seal() error {
	hdr, err := readHeader(w.f)
	if err != nil {
		return err
	}
	hdr.flags |= flagSealed
	if _, err := w.f.WriteAt([]byte{hdr.flags}, 2); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	w.sealed = true
	return nil
}

func (w *FileWriter) Close() error {
	return w.f.Close()
}

// FileReader is an independent read handle to a file-backed stream.
type FileReader struct {
	f *os.File
}

func openFileReader(path string) (*FileReader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if _, err := readHeader(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileReader{f: f}, nil
}

// HeadOffset returns the first readable logical offset, re-read from the
// header on every call so concurrent truncation is observed.
func (r *FileReader) HeadOffset() (uint64, error) {
	hdr, err := readHeader(r.f)
	if err != nil {
		return 0, err
	}
	return hdr.head, nil
}

// TailOffset returns the logical offset one past the last durable byte.
func (r *FileReader) TailOffset() (uint64, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()) - headerSize, nil
}

// ReadAt reads len(p) bytes at the logical offset off. Reading below the
// head fails with ErrTruncated.
func (r *FileReader) ReadAt(p []byte, off uint64) (int, error) {
	hdr, err := readHeader(r.f)
	if err != nil {
		return 0, err
	}
	if off < hdr.head {
		return 0, ErrTruncated
	}
	return r.f.ReadAt(p, int64(headerSize+off))
}

func (r *FileReader) Close() error {
	return r.f.Close()
}

func readHeader(f *os.File) (header, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return header{}, err
	}
	return decodeHeader(buf[:])
}

var _ Writer = (*FileWriter)(nil)
var _ Reader = (*FileReader)(nil)
