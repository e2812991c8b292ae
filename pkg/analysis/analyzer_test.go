package analysis

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"shutter-cam/pkg/camera"
)

func newFrame(seq uint64, format camera.PixelFormat, w, h int, data []byte, outstanding *atomic.Int64) *camera.Frame {
	outstanding.Add(1)
	return camera.NewFrame(seq, camera.Spec{Width: w, Height: h, Format: format}, data, func() { outstanding.Add(-1) })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func submit(t *testing.T, a *Analyzer, f *camera.Frame) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !a.Submit(f) {
		if time.Now().After(deadline) {
			t.Fatal("analyzer never became idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAnalyzerEmitsInOrder(t *testing.T) {
	samples := make(chan Sample, 8)
	a := New(func(s Sample) { samples <- s }, nil)
	defer a.Close()

	var outstanding atomic.Int64
	submit(t, a, newFrame(1, camera.FormatGray, 2, 2, []byte{0, 0, 0, 0}, &outstanding))
	submit(t, a, newFrame(2, camera.FormatGray, 2, 2, bytes.Repeat([]byte{0xFF}, 4), &outstanding))
	submit(t, a, newFrame(3, camera.FormatYUYV, 2, 1, []byte{0x00, 0x80, 0xFF, 0x80}, &outstanding))

	want := []Sample{{Seq: 1, Luma: 0}, {Seq: 2, Luma: 255}, {Seq: 3, Luma: 127.5}}
	for _, w := range want {
		select {
		case s := <-samples:
			if s.Seq != w.Seq || s.Luma != w.Luma {
				t.Errorf("sample = %+v, want seq %d luma %v", s, w.Seq, w.Luma)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no sample")
		}
	}
	waitFor(t, func() bool { return outstanding.Load() == 0 })
}

func TestAnalyzerReleasesMalformedFrames(t *testing.T) {
	var emitted atomic.Int64
	a := New(func(Sample) { emitted.Add(1) }, nil)
	defer a.Close()

	var outstanding atomic.Int64
	// truncated luma plane, not a jpeg, and an empty plane
	submit(t, a, newFrame(1, camera.FormatGray, 4, 4, []byte{1, 2}, &outstanding))
	submit(t, a, newFrame(2, camera.FormatJPEG, 4, 4, []byte("not a jpeg"), &outstanding))
	submit(t, a, newFrame(3, camera.FormatGray, 0, 0, nil, &outstanding))

	waitFor(t, func() bool {
		_, failed := a.Stats()
		return failed == 3
	})
	if n := outstanding.Load(); n != 0 {
		t.Fatalf("outstanding frames = %d, want 0", n)
	}
	if n := emitted.Load(); n != 0 {
		t.Fatalf("emitted %d samples for malformed frames", n)
	}
}

func TestAnalyzerSurvivesListenerPanic(t *testing.T) {
	var calls atomic.Int64
	a := New(func(Sample) {
		if calls.Add(1) == 1 {
			panic("listener failure")
		}
	}, nil)
	defer a.Close()

	var outstanding atomic.Int64
	submit(t, a, newFrame(1, camera.FormatGray, 1, 1, []byte{9}, &outstanding))
	submit(t, a, newFrame(2, camera.FormatGray, 1, 1, []byte{9}, &outstanding))

	waitFor(t, func() bool { return calls.Load() == 2 })
	waitFor(t, func() bool { return outstanding.Load() == 0 })
	waitFor(t, func() bool {
		analyzed, failed := a.Stats()
		return analyzed+failed == 2
	})
	if analyzed, failed := a.Stats(); analyzed != 1 || failed != 1 {
		t.Fatalf("stats = %d analyzed, %d failed, want 1 and 1", analyzed, failed)
	}
}

func TestAnalyzerDropsWhileBusy(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	a := New(func(Sample) {
		started <- struct{}{}
		<-block
	}, nil)

	var outstanding atomic.Int64
	submit(t, a, newFrame(1, camera.FormatGray, 1, 1, []byte{1}, &outstanding))
	<-started

	f := newFrame(2, camera.FormatGray, 1, 1, []byte{1}, &outstanding)
	if a.Submit(f) {
		t.Fatal("busy analyzer accepted a frame")
	}
	f.Release()

	close(block)
	a.Close()
	if n := outstanding.Load(); n != 0 {
		t.Fatalf("outstanding frames after close = %d, want 0", n)
	}
}

func TestCloseWaitsForInFlightFrame(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	a := New(func(Sample) {
		close(started)
		<-release
	}, nil)

	var outstanding atomic.Int64
	submit(t, a, newFrame(1, camera.FormatGray, 1, 1, []byte{1}, &outstanding))
	<-started

	closed := make(chan struct{})
	go func() {
		a.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a frame was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-closed

	if n := outstanding.Load(); n != 0 {
		t.Fatalf("outstanding frames = %d, want 0", n)
	}
	f := newFrame(2, camera.FormatGray, 1, 1, []byte{1}, &outstanding)
	if a.Submit(f) {
		t.Fatal("closed analyzer accepted a frame")
	}
	f.Release()
}
