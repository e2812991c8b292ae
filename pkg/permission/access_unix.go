//go:build linux || darwin || freebsd

package permission

import (
	"golang.org/x/sys/unix"
)

// access checks read and write permission on a device node, or write and
// search permission on a directory.
func access(path string, dir bool) error {
	mode := uint32(unix.R_OK | unix.W_OK)
	if dir {
		mode = unix.W_OK | unix.X_OK
	}
	return unix.Access(path, mode)
}
