package journal

import (
	"os"
	"syscall"
)

// fdatasync skips the metadata flush that f.Sync does. A failed sync leaves
// the file in an unknown state, so the journal stops writing after one.
func fdatasync(f *os.File) error {
	return syscall.Fdatasync(int(f.Fd()))
}
