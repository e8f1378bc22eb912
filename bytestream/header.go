package bytestream

import (
	"encoding/binary"
	"errors"
)

// Stream files begin with a fixed header; logical offset 0 maps to the
// first byte after it. The head offset is the only mutable field and is
// updated with a single 8-byte write so concurrent handles observe it
// atomically for this access pattern.
const (
	magicByte   = 0xB7
	versionByte = 0x01

	flagSealed = 0x01

	headerSize     = 16
	headOffsetPos  = 8
	headOffsetSize = 8
)

var (
	ErrHeaderTooSmall  = errors.New("stream header too small")
	ErrMagicMismatch   = errors.New("stream magic mismatch")
	ErrVersionMismatch = errors.New("stream version mismatch")
)

type header struct {
	flags byte
	head  uint64
}

func (h header) sealed() bool { return h.flags&flagSealed != 0 }

func encodeHeader(h header) [headerSize]byte {
	var buf [headerSize]byte
	buf[0] = magicByte
	buf[1] = versionByte
	buf[2] = h.flags
	binary.LittleEndian.PutUint64(buf[headOffsetPos:headOffsetPos+headOffsetSize], h.head)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, ErrHeaderTooSmall
	}
	if buf[0] != magicByte {
		return header{}, ErrMagicMismatch
	}
	if buf[1] != versionByte {
		return header{}, ErrVersionMismatch
	}
	return header{
		flags: buf[2],
		head:  binary.LittleEndian.Uint64(buf[headOffsetPos : headOffsetPos+headOffsetSize]),
	}, nil
}
