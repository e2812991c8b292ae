package util

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"shutter-cam/pkg/storage/consts"
)

func MkdirAll(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, consts.DefaultDirPerm); err != nil {
			return err
		}
	}

	return nil
}

// RemovePending deletes the hidden pending files a crashed recording left
// in dir and returns how many went. A missing dir is not an error.
func RemovePending(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, consts.DefaultPendingExt) {
			continue
		}
		if err = os.Remove(filepath.Join(dir, name)); err != nil {
			return n, err
		}
		n++
	}

	return n, nil
}
