// Package cameratest provides a scriptable camera driver for tests.
package cameratest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"shutter-cam/pkg/camera"
)

// OpenCall records one successful Driver.Open.
type OpenCall struct {
	Selector camera.Selector
	UseCases camera.UseCaseSet
}

// Driver hands out streams whose frames are pushed by the test.
type Driver struct {
	Spec camera.Spec

	// OpenErr, when set, is returned by the next Open calls.
	OpenErr error
	// Unsupported rejects use-case combinations.
	Unsupported func(camera.UseCaseSet) bool

	mu      sync.Mutex
	opens   []OpenCall
	current *Stream
	open    int
	maxOpen int

	outstanding atomic.Int64
	seq         atomic.Uint64
}

func NewDriver() *Driver {
	return &Driver{Spec: camera.Spec{Width: 4, Height: 2, FPS: 30, Format: camera.FormatGray}}
}

func (d *Driver) Cameras() []camera.Selector {
	return []camera.Selector{camera.Back, camera.Front}
}

func (d *Driver) Open(ctx context.Context, selector camera.Selector, useCases camera.UseCaseSet) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.Unsupported != nil && d.Unsupported(useCases) {
		return nil, fmt.Errorf("%w: %s", camera.ErrUnsupportedCombination, useCases)
	}
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	d.opens = append(d.opens, OpenCall{Selector: selector, UseCases: useCases})
	s := &Stream{driver: d, frames: make(chan *camera.Frame)}
	d.current = s
	return s, nil
}

// Opens returns every successful Open call in order.
func (d *Driver) Opens() []OpenCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]OpenCall(nil), d.opens...)
}

// MaxConcurrent is the highest number of streams open at the same time.
func (d *Driver) MaxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// OpenStreams is the number of streams not yet closed.
func (d *Driver) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Current is the most recently opened stream.
func (d *Driver) Current() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Outstanding is the number of delivered frames not yet released.
func (d *Driver) Outstanding() int64 {
	return d.outstanding.Load()
}

// Push delivers data as one frame on the current stream and blocks until the
// consumer receives it. It returns false if no stream is open.
func (d *Driver) Push(data []byte) bool {
	s := d.Current()
	if s == nil {
		return false
	}
	return s.Push(d.Spec, data)
}

// Stream is a cameratest stream.
type Stream struct {
	driver *Driver
	frames chan *camera.Frame

	mu     sync.Mutex
	closed bool
}

func (s *Stream) Spec() camera.Spec {
	return s.driver.Spec
}

func (s *Stream) Frames() <-chan *camera.Frame {
	return s.frames
}

// Push sends one frame with the given spec.
func (s *Stream) Push(spec camera.Spec, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	d := s.driver
	d.outstanding.Add(1)
	f := camera.NewFrame(d.seq.Add(1), spec, data, func() { d.outstanding.Add(-1) })
	s.frames <- f
	return true
}

// End simulates the device going away.
func (s *Stream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
	s.driver.mu.Lock()
	s.driver.open--
	s.driver.mu.Unlock()
}

func (s *Stream) Close() error {
	s.End()
	return nil
}
