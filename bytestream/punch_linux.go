//go:build linux

package bytestream

import (
	"os"

	"golang.org/x/sys/unix"
)

// punchHole deallocates the byte range without changing the file size.
// Errors are ignored: the head offset in the header is authoritative and
// reclamation is opportunistic.
func punchHole(f *os.File, off, length int64) {
	if length <= 0 {
		return
	}
	_ = unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, off, length)
}
