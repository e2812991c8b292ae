//go:build !(linux || darwin || freebsd)

package permission

import (
	"os"
)

func access(path string, _ bool) error {
	_, err := os.Stat(path)
	return err
}
