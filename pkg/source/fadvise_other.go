//go:build !linux

package source

import "os"

// adviseSequential is a no-op where posix_fadvise is unavailable.
func adviseSequential(*os.File) error {
	return nil
}
