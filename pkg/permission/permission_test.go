package permission

import (
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func request(t *testing.T, g *Gate) bool {
	t.Helper()
	var calls atomic.Int32
	ch := make(chan bool, 2)
	g.RequestAll(func(granted bool) {
		calls.Add(1)
		ch <- granted
	})
	select {
	case granted := <-ch:
		time.Sleep(10 * time.Millisecond)
		if n := calls.Load(); n != 1 {
			t.Fatalf("outcome delivered %d times", n)
		}
		return granted
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}
	return false
}

func TestDefaultSet(t *testing.T) {
	if got := DefaultSet(false).Required(); !reflect.DeepEqual(got, []Capability{Camera}) {
		t.Fatalf("required = %v", got)
	}
	s := DefaultSet(true)
	if got := s.Required(); !reflect.DeepEqual(got, []Capability{Camera, StorageWriteLegacy}) {
		t.Fatalf("required = %v", got)
	}
	if got := s.Names(); len(got) != 3 {
		t.Fatalf("names = %v", got)
	}
}

func TestGate(t *testing.T) {
	cases := []struct {
		name   string
		legacy bool
		grants map[Capability]bool
		want   bool
	}{
		{name: "all granted", grants: map[Capability]bool{Camera: true, Microphone: true}, want: true},
		{name: "microphone denied", grants: map[Capability]bool{Camera: true}, want: true},
		{name: "camera denied", grants: map[Capability]bool{Microphone: true}, want: false},
		{name: "legacy storage denied", legacy: true, grants: map[Capability]bool{Camera: true, Microphone: true}, want: false},
		{name: "legacy storage granted", legacy: true, grants: map[Capability]bool{Camera: true, StorageWriteLegacy: true}, want: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewStatic(c.grants)
			g := NewGate(p, DefaultSet(c.legacy), nil)
			if got := g.CheckAll(); got != c.want {
				t.Fatalf("CheckAll = %v, want %v", got, c.want)
			}
			if got := request(t, g); got != c.want {
				t.Fatalf("RequestAll = %v, want %v", got, c.want)
			}
			if g.Granted(Microphone) != c.grants[Microphone] {
				t.Fatalf("Granted(microphone) = %v", g.Granted(Microphone))
			}
		})
	}
}

func TestStaticRetry(t *testing.T) {
	p := NewStatic(nil)
	g := NewGate(p, DefaultSet(false), nil)
	if request(t, g) {
		t.Fatal("granted with nothing allowed")
	}
	p.Grant(Camera, true)
	if !request(t, g) {
		t.Fatal("not granted after user allowed camera")
	}
	if n := p.Requests(); n != 2 {
		t.Fatalf("requests = %d", n)
	}
}

func TestSystem(t *testing.T) {
	dir := t.TempDir()
	cam := filepath.Join(dir, "video0")
	if err := os.WriteFile(cam, nil, 0600); err != nil {
		t.Fatal(err)
	}
	snd := filepath.Join(dir, "snd")
	if err := os.Mkdir(snd, 0700); err != nil {
		t.Fatal(err)
	}

	s := NewSystem(SystemPaths{
		Cameras: []string{filepath.Join(dir, "missing"), cam},
		Sound:   snd,
		Media:   dir,
	}, nil)
	if !s.Granted(Camera) {
		t.Fatal("camera not granted")
	}
	if s.Granted(Microphone) {
		t.Fatal("microphone granted without a capture device")
	}
	if !s.Granted(StorageWriteLegacy) {
		t.Fatal("media dir not writable")
	}

	if err := os.WriteFile(filepath.Join(snd, "pcmC0D0c"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	if !s.Granted(Microphone) {
		t.Fatal("microphone not granted")
	}

	g := NewGate(s, DefaultSet(true), nil)
	if !request(t, g) {
		t.Fatal("system request denied")
	}
}
