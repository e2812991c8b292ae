// Package mainloop runs callbacks one at a time on a single goroutine.
//
// Everything that mutates controller state or talks to the UI is posted to
// the loop, so those objects need no locking of their own. Hardware work
// happens on other goroutines, which post their outcome back.
package mainloop

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"shutter-cam/pkg/utils"
)

var ErrStopped = errors.New("main loop stopped")

type Loop struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

// New creates a loop and starts its goroutine.
func New(logger *zap.SugaredLogger) *Loop {
	if logger == nil {
		logger = utils.GetLogger()
	}
	l := &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()

	return l
}

// Post queues fn without blocking. It returns false once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	return true
}

// Call runs fn on the loop and waits for it. Calling it from the loop
// goroutine deadlocks.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// stopped after fn was queued; it still ran if the drain reached it
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop refuses new work, runs what is already queued and waits for the
// goroutine to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		close(l.wake)
	}
	l.mu.Unlock()
	<-l.done
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		_, open := <-l.wake
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.exec(fn)
		}
		if !open {
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("main loop task panicked: %v", r)
		}
	}()
	fn()
}
