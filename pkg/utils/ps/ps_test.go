package ps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage(t *testing.T) {
	d, err := DiskUsage(t.TempDir())
	if err != nil {
		t.Skipf("disk usage unavailable: %s", err)
	}
	if d.Total == 0 || d.Free > d.Total {
		t.Fatalf("unexpected disk usage %+v", d)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 5), 0600); err != nil {
		t.Fatal(err)
	}
	n, err := DirSize(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 15 {
		t.Fatalf("size = %d, want 15", n)
	}

	if _, err = DirSize(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("missing dir has a size")
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.avi"), make([]byte, 2000), 0600); err != nil {
		t.Fatal(err)
	}
	st, err := Snapshot(dir)
	if err != nil {
		t.Skipf("host stats unavailable: %s", err)
	}
	if st.Media != "2.0 kB" {
		t.Fatalf("media = %q, want 2.0 kB", st.Media)
	}
}
