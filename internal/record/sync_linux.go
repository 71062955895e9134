//go:build linux

package record

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncData flushes file contents to stable storage without forcing a
// metadata update.
func syncData(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
