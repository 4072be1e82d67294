//go:build linux

package source

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel f will be read front to back so it can
// read ahead aggressively.
func adviseSequential(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
