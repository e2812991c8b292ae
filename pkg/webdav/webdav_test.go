package webdav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandlerListsMedia(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "Pictures", "Shutter-Image"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Pictures", "Shutter-Image", "a.jpg"), []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	s := New(context.Background(), 0, dir, nil)

	req := httptest.NewRequest("PROPFIND", "/Pictures/Shutter-Image/", nil)
	req.Header.Set("Depth", "1")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "a.jpg") {
		t.Fatalf("listing misses a.jpg: %s", w.Body.String())
	}
}

func TestStartStop(t *testing.T) {
	s := New(context.Background(), 0, t.TempDir(), nil)
	if s.Stop() {
		t.Fatal("stopped a server that was not running")
	}
	started, err := s.Start()
	if err != nil || !started {
		t.Fatalf("start = %v, %v", started, err)
	}
	if !s.Running() || s.Addr() == "" {
		t.Fatal("not running after start")
	}
	if started, _ = s.Start(); started {
		t.Fatal("started twice")
	}
	if !s.Stop() || s.Running() {
		t.Fatal("still running after stop")
	}
}
