package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"shutter-cam/pkg/camera"
	"shutter-cam/pkg/utils"
)

// Sample is the luminosity of one analyzed frame.
type Sample struct {
	Seq  uint64    `json:"seq"`
	Luma float64   `json:"luma"`
	At   time.Time `json:"at"`
}

// Listener receives samples on the analyzer goroutine.
type Listener func(Sample)

// Analyzer computes luminosity on a single worker goroutine. Frames are taken
// only while the worker is idle; the caller keeps and releases anything
// Submit refuses, which is how slow analysis drops frames instead of
// queueing them.
type Analyzer struct {
	listener Listener
	logger   *zap.SugaredLogger

	in   chan *camera.Frame
	quit chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool

	analyzed atomic.Uint64
	failed   atomic.Uint64
}

func New(listener Listener, logger *zap.SugaredLogger) *Analyzer {
	if logger == nil {
		logger = utils.GetLogger()
	}
	a := &Analyzer{
		listener: listener,
		logger:   logger,
		in:       make(chan *camera.Frame),
		quit:     make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()

	return a
}

// Submit hands f to the worker if it is idle. On true the analyzer owns f
// and releases it; on false the caller still owns it.
func (a *Analyzer) Submit(f *camera.Frame) bool {
	if a.closed.Load() {
		return false
	}
	select {
	case a.in <- f:
		return true
	default:
		return false
	}
}

// Close stops the worker after the in-flight frame, if any, is released.
func (a *Analyzer) Close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.quit)
	})
	a.wg.Wait()
}

// Stats returns the number of analyzed and failed frames. A frame is
// counted once, after its listener call returned.
func (a *Analyzer) Stats() (analyzed, failed uint64) {
	return a.analyzed.Load(), a.failed.Load()
}

func (a *Analyzer) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.quit:
			return
		case f := <-a.in:
			a.analyze(f)
		}
	}
}

func (a *Analyzer) analyze(f *camera.Frame) {
	defer f.Release()
	defer func() {
		if r := recover(); r != nil {
			a.failed.Add(1)
			a.logger.Errorf("analyze frame %d panicked: %v", f.Seq, r)
		}
	}()

	luma, err := a.measure(f)
	if err != nil {
		a.failed.Add(1)
		a.logger.Debugf("skip frame %d: %s", f.Seq, err)
		return
	}
	if a.listener != nil {
		a.listener(Sample{Seq: f.Seq, Luma: luma, At: f.Timestamp})
	}
	// a panicking listener counts as failed only
	a.analyzed.Add(1)
}

func (a *Analyzer) measure(f *camera.Frame) (float64, error) {
	plane, err := f.LumaPlane()
	if err != nil {
		return 0, err
	}
	luma, err := Luminosity(plane)
	if err != nil {
		return 0, fmt.Errorf("frame %d: %w", f.Seq, err)
	}
	return luma, nil
}
