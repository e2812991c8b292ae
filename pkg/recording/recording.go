// Package recording drives the video recording lifecycle
// idle -> starting -> active -> finalizing -> idle.
//
// Every method except Phase must run on the main loop; device events are
// posted back to it before they touch any state.
package recording

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"shutter-cam/pkg/session"
	"shutter-cam/pkg/storage"
	"shutter-cam/pkg/ui"
	"shutter-cam/pkg/utils"
	"shutter-cam/pkg/video"
)

var (
	ErrInvalidState = errors.New("recording: invalid state")
	ErrNotBound     = errors.New("recording: video capture not bound")
)

type Phase string

const (
	Idle       Phase = "idle"
	Starting   Phase = "starting"
	Active     Phase = "active"
	Finalizing Phase = "finalizing"
)

const (
	evStart    = "start"
	evStarted  = "started"
	evStop     = "stop"
	evCancel   = "cancel"
	evFinalize = "finalize"
	evFail     = "fail"
)

// Recorder is the part of session.Manager the controller needs.
type Recorder interface {
	// CanRecord returns why StartRecording would be refused now, or nil.
	CanRecord() error
	StartRecording(out video.Output, audio bool, onEvent func(video.Event)) (*video.Encoder, error)
}

type SinkFactory interface {
	CreateSink(d storage.Descriptor) (*storage.Sink, error)
}

type Poster interface {
	Post(fn func()) bool
}

// Handle is the in-progress recording.
type Handle struct {
	ID    string
	Sink  *storage.Sink
	Audio bool

	enc *video.Encoder
}

type Controller struct {
	recorder Recorder
	store    SinkFactory
	loop     Poster
	ui       ui.Sink
	mic      func() bool
	logger   *zap.SugaredLogger

	fsm *fsm.FSM
	// handle is cleared as soon as stop is issued; pending lives until its
	// Finalize event.
	handle  *Handle
	pending *Handle
	waiters []chan struct{}
}

// New builds an idle controller. mic reports whether the microphone is
// granted at the moment recording starts.
func New(recorder Recorder, store SinkFactory, loop Poster, sink ui.Sink, mic func() bool, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if mic == nil {
		mic = func() bool { return false }
	}
	c := &Controller{
		recorder: recorder,
		store:    store,
		loop:     loop,
		ui:       sink,
		mic:      mic,
		logger:   logger,
	}
	c.fsm = fsm.NewFSM(
		string(Idle),
		fsm.Events{
			{Name: evStart, Src: []string{string(Idle)}, Dst: string(Starting)},
			{Name: evStarted, Src: []string{string(Starting)}, Dst: string(Active)},
			{Name: evStop, Src: []string{string(Active)}, Dst: string(Finalizing)},
			{Name: evCancel, Src: []string{string(Starting)}, Dst: string(Finalizing)},
			{Name: evFinalize, Src: []string{string(Starting), string(Active), string(Finalizing)}, Dst: string(Idle)},
			{Name: evFail, Src: []string{string(Starting)}, Dst: string(Idle)},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				c.logger.Debugf("recording: %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)

	return c
}

// Phase is safe to call from any goroutine.
func (c *Controller) Phase() Phase {
	return Phase(c.fsm.Current())
}

// Handle returns the recording that can still be stopped, if any.
func (c *Controller) Handle() *Handle {
	return c.handle
}

// Start begins a recording into a new sink for desc. It is rejected with
// ErrInvalidState unless idle. Audio is silently disabled when the
// microphone is not granted.
func (c *Controller) Start(desc storage.Descriptor, audioRequested bool) error {
	if !c.fsm.Can(evStart) {
		c.logger.Warnf("recording: ignore start in %s", c.Phase())
		return fmt.Errorf("%w: start in %s", ErrInvalidState, c.Phase())
	}
	if err := c.recorder.CanRecord(); err != nil {
		c.logger.Warnf("recording: ignore start, %s", err)
		return fmt.Errorf("%w: %s", ErrNotBound, err)
	}
	audio := audioRequested && c.mic()
	if audioRequested && !audio {
		c.logger.Infof("recording: microphone not granted, recording without audio")
	}

	sink, err := c.store.CreateSink(desc)
	if err != nil {
		c.notifyError(err)
		return err
	}
	if err = c.fsm.Event(evStart); err != nil {
		_ = sink.Abort()
		return fmt.Errorf("%w: %s", ErrInvalidState, err)
	}

	h := &Handle{ID: uuid.NewString(), Sink: sink, Audio: audio}
	enc, err := c.recorder.StartRecording(sink, audio, func(ev video.Event) {
		c.loop.Post(func() {
			c.onEvent(h, ev)
		})
	})
	if err != nil {
		_ = sink.Abort()
		_ = c.fsm.Event(evFail)
		// unbound in between the check and the call
		if errors.Is(err, session.ErrUnbound) || errors.Is(err, session.ErrUseCaseNotBound) {
			c.logger.Warnf("recording: ignore start, %s", err)
			return fmt.Errorf("%w: %s", ErrNotBound, err)
		}
		c.notifyError(err)
		return err
	}
	c.ui.SetAffordanceEnabled(false)
	h.enc = enc
	c.handle = h
	c.pending = h
	c.logger.Infof("recording: %s starting into %s/%s (audio=%v)", h.ID, sink.Descriptor().Category, sink.Name, audio)

	return nil
}

// Stop requests finalize of the active recording. It is a no-op unless
// active and reports whether a stop was issued.
func (c *Controller) Stop() bool {
	if !c.fsm.Can(evStop) || c.handle == nil {
		return false
	}
	h := c.handle
	c.handle = nil
	_ = c.fsm.Event(evStop)
	c.ui.SetAffordanceEnabled(false)
	h.enc.Stop()
	c.logger.Infof("recording: %s stopping", h.ID)

	return true
}

// Toggle is the video button: stop when active, start when idle, ignored
// while the device has not answered yet.
func (c *Controller) Toggle(desc storage.Descriptor, audioRequested bool) error {
	switch c.Phase() {
	case Active:
		c.Stop()
		return nil
	case Idle:
		return c.Start(desc, audioRequested)
	}
	c.logger.Debugf("recording: ignore toggle in %s", c.Phase())
	return nil
}

// Shutdown asks a starting or active recording to finalize. The returned
// channel is closed once the controller is idle.
func (c *Controller) Shutdown() <-chan struct{} {
	ch := make(chan struct{})
	switch c.Phase() {
	case Idle:
		close(ch)
		return ch
	case Active:
		c.Stop()
	case Starting:
		if h := c.handle; h != nil {
			c.handle = nil
			_ = c.fsm.Event(evCancel)
			c.ui.SetAffordanceEnabled(false)
			h.enc.Stop()
		}
	}
	c.waiters = append(c.waiters, ch)

	return ch
}

func (c *Controller) onEvent(h *Handle, ev video.Event) {
	if h != c.pending {
		c.logger.Debugf("recording: drop stale %s event of %s", ev.Type, h.ID)
		return
	}
	switch ev.Type {
	case video.EventStart:
		if c.fsm.Can(evStarted) {
			_ = c.fsm.Event(evStarted)
			c.ui.SetAffordanceLabel(ui.LabelStop)
			c.ui.SetAffordanceEnabled(true)
		}
	case video.EventFinalize:
		c.finalize(h, ev)
	}
}

func (c *Controller) finalize(h *Handle, ev video.Event) {
	c.pending = nil
	c.handle = nil
	_ = c.fsm.Event(evFinalize)

	if ev.Err != nil {
		h.enc.Stop()
		_ = h.Sink.Abort()
		c.notifyError(ev.Err)
	} else {
		c.logger.Infof("recording: %s saved %d frames (%s, %d dropped) in %s",
			h.ID, ev.Frames, humanize.Bytes(uint64(ev.Bytes)), h.enc.Dropped(), ev.Duration)
		c.ui.NotifyUser("Video capture succeeded: " + ev.URI)
	}
	c.ui.SetAffordanceLabel(ui.LabelStart)
	c.ui.SetAffordanceEnabled(true)

	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
}

func (c *Controller) notifyError(err error) {
	c.logger.Errorf("recording: %s", err)
	c.ui.NotifyUser(fmt.Sprintf("Video capture ends with error: %s", err))
}
