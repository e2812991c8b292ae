package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemovePending(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".a.pending", ".b.pending", "clip.avi", "visible.pending"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}

	n, err := RemovePending(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	left, _ := os.ReadDir(dir)
	if len(left) != 2 {
		t.Fatalf("left %d files, want 2", len(left))
	}

	if n, err = RemovePending(filepath.Join(dir, "missing")); n != 0 || err != nil {
		t.Fatalf("missing dir: %d, %v", n, err)
	}
}
