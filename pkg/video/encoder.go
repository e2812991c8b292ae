package video

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNoFrames = errors.New("no valid data recorded")
	ErrStopped  = errors.New("encoder stopped")
)

type EventType int

const (
	EventStart EventType = iota + 1
	EventFinalize
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventFinalize:
		return "finalize"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is reported by a running encoder. Start comes at most once, before
// Finalize; Finalize always comes exactly once.
type Event struct {
	Type EventType
	// URI is set on a successful Finalize.
	URI      string
	Err      error
	Frames   int
	Bytes    int64
	Duration time.Duration
}

// Output is where an encoder writes; storage.Sink satisfies it.
type Output interface {
	Path() string
	Commit() (string, error)
	Abort() error
}

type Params struct {
	Width  int
	Height int
	FPS    int
	Audio  bool
}

// Encoder records JPEG frames handed to Add until Stop.
type Encoder struct {
	out     Output
	params  Params
	onEvent func(Event)

	frames  chan []byte
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	dropped atomic.Uint64
}

const frameQueue = 8

// Start opens the output on a new goroutine. Failures are reported through a
// Finalize event.
func Start(out Output, p Params, onEvent func(Event)) *Encoder {
	e := &Encoder{
		out:     out,
		params:  p,
		onEvent: onEvent,
		frames:  make(chan []byte, frameQueue),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go e.run()

	return e
}

func (e *Encoder) Audio() bool {
	return e.params.Audio
}

// Add queues a JPEG frame, dropping it if the writer is behind.
func (e *Encoder) Add(jpeg []byte) bool {
	if e.stopped.Load() {
		return false
	}
	select {
	case e.frames <- jpeg:
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// Stop asks the encoder to finalize. It does not wait; Done does.
func (e *Encoder) Stop() {
	e.once.Do(func() {
		e.stopped.Store(true)
		close(e.stop)
	})
}

func (e *Encoder) Done() <-chan struct{} {
	return e.done
}

func (e *Encoder) Dropped() uint64 {
	return e.dropped.Load()
}

func (e *Encoder) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

func (e *Encoder) run() {
	defer close(e.done)

	b, err := newAVIBuilder(e.out.Path(), e.params)
	if err != nil {
		_ = e.out.Abort()
		e.emit(Event{Type: EventFinalize, Err: fmt.Errorf("open output: %w", err)})
		return
	}
	start := time.Now()
	e.emit(Event{Type: EventStart})

	var writeErr error
loop:
	for {
		select {
		case <-e.stop:
			break loop
		case f := <-e.frames:
			if writeErr != nil {
				continue
			}
			writeErr = e.write(b, f)
		}
	}
	// keep what was already queued
	for writeErr == nil {
		select {
		case f := <-e.frames:
			writeErr = e.write(b, f)
			continue
		default:
		}
		break
	}

	e.emit(e.finish(b, writeErr, time.Since(start)))
}

// write adds f, counting a non-jpeg buffer as dropped instead of failing.
func (e *Encoder) write(b *aviBuilder, f []byte) error {
	err := b.add(f)
	if errors.Is(err, errNotJPEG) {
		e.dropped.Add(1)
		return nil
	}
	return err
}

func (e *Encoder) finish(b *aviBuilder, writeErr error, d time.Duration) Event {
	ev := Event{Type: EventFinalize, Frames: b.frames, Bytes: b.bytes, Duration: d}
	closeErr := b.close()
	switch {
	case writeErr != nil:
		ev.Err = fmt.Errorf("write frame: %w", writeErr)
	case closeErr != nil:
		ev.Err = fmt.Errorf("close output: %w", closeErr)
	case b.frames == 0:
		ev.Err = ErrNoFrames
	}
	if ev.Err != nil {
		_ = e.out.Abort()
		return ev
	}
	uri, err := e.out.Commit()
	if err != nil {
		ev.Err = err
		return ev
	}
	ev.URI = uri
	return ev
}
