package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"shutter-cam/pkg/camera"
	"shutter-cam/pkg/utils"
	"shutter-cam/pkg/video"
)

// FrameSink takes ownership of a frame when Submit returns true.
type FrameSink interface {
	Submit(f *camera.Frame) bool
}

// Manager owns the one bound camera session. Bind, UnbindAll and Rebind may
// be called from any goroutine; they are serialized and block on hardware,
// so the main loop calls them from a worker goroutine.
type Manager struct {
	driver   camera.Driver
	analyzer FrameSink
	preview  *Preview
	logger   *zap.SugaredLogger

	quality    int
	retries    int
	retryDelay time.Duration
	onLost     func(Info)

	mu      sync.Mutex
	current *Session
}

type Option func(*Manager)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithBusyRetry retries a busy device n more times, delay apart.
func WithBusyRetry(n int, delay time.Duration) Option {
	return func(m *Manager) {
		m.retries = n
		m.retryDelay = delay
	}
}

// WithLostHandler is called on its own goroutine when a bound stream ends
// without UnbindAll.
func WithLostHandler(fn func(Info)) Option {
	return func(m *Manager) {
		m.onLost = fn
	}
}

func WithJPEGQuality(q int) Option {
	return func(m *Manager) {
		m.quality = q
	}
}

func NewManager(driver camera.Driver, analyzer FrameSink, opts ...Option) *Manager {
	m := &Manager{
		driver:     driver,
		analyzer:   analyzer,
		preview:    newPreview(),
		logger:     utils.GetLogger(),
		quality:    camera.DefaultJPEGQuality,
		retries:    4,
		retryDelay: 150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) Preview() *Preview {
	return m.preview
}

// Cameras lists the selectors the driver can open right now.
func (m *Manager) Cameras() []camera.Selector {
	return m.driver.Cameras()
}

// Bound returns the current session, if any.
func (m *Manager) Bound() (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Info{}, false
	}
	return m.current.info, true
}

// Bind unbinds whatever is bound and binds useCases on selector. On error
// nothing is bound.
func (m *Manager) Bind(ctx context.Context, selector camera.Selector, useCases camera.UseCaseSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unbindLocked()

	if useCases.Empty() {
		return &BindError{Selector: selector, UseCases: useCases,
			Err: fmt.Errorf("%w: empty use-case set", camera.ErrUnsupportedCombination)}
	}

	if !slices.Contains(m.driver.Cameras(), selector) {
		return &BindError{Selector: selector, UseCases: useCases,
			Err: fmt.Errorf("%w: no %s camera", camera.ErrDeviceUnavailable, selector)}
	}
	stream, err := m.open(ctx, selector, useCases)
	if err != nil {
		m.logger.Errorf("session: use case binding failed: %s", err)
		return &BindError{Selector: selector, UseCases: useCases, Err: err}
	}

	s := newSession(selector, useCases, stream)
	m.current = s
	go m.pump(s)
	m.logger.Infof("session: bound %s camera with %s", selector, useCases)

	return nil
}

func (m *Manager) open(ctx context.Context, selector camera.Selector, useCases camera.UseCaseSet) (camera.Stream, error) {
	var (
		stream camera.Stream
		err    error
	)
	for i := 0; ; i++ {
		stream, err = m.driver.Open(ctx, selector, useCases)
		if err == nil || !camera.IsBusyErr(err) || i >= m.retries {
			return stream, err
		}
		m.logger.Warnf("session: device busy, will retry %d/%d: %s", i+1, m.retries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
}

// UnbindAll releases every use-case. It is a no-op when nothing is bound.
func (m *Manager) UnbindAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unbindLocked()
}

// Rebind always goes through UnbindAll; use-cases are never changed in place.
func (m *Manager) Rebind(ctx context.Context, selector camera.Selector, useCases camera.UseCaseSet) error {
	m.UnbindAll()
	return m.Bind(ctx, selector, useCases)
}

func (m *Manager) unbindLocked() {
	s := m.current
	if s == nil {
		return
	}
	m.current = nil
	s.unbinding.Store(true)

	enc := s.shutdown(ErrUnbound)
	if err := s.stream.Close(); err != nil {
		m.logger.Warnf("session: close stream: %s", err)
	}
	<-s.done
	if enc != nil {
		<-enc.Done()
	}
	m.logger.Infof("session: unbound %s camera", s.info.Selector)
}

// CaptureStill hands the next frame to handler as JPEG, on its own goroutine.
// handler runs exactly once, with an error if the session goes away first.
func (m *Manager) CaptureStill(handler func(jpeg []byte, err error)) error {
	s, err := m.withUseCase(camera.StillCapture)
	if err != nil {
		return err
	}
	if !s.addStill(&stillRequest{handler: handler}) {
		return ErrUnbound
	}
	return nil
}

// CanRecord returns ErrUnbound or ErrUseCaseNotBound while VideoCapture is
// not bound.
func (m *Manager) CanRecord() error {
	_, err := m.withUseCase(camera.VideoCapture)
	return err
}

// StartRecording starts an encoder fed by the VideoCapture use-case.
// onEvent is called on the encoder goroutine.
func (m *Manager) StartRecording(out video.Output, audio bool, onEvent func(video.Event)) (*video.Encoder, error) {
	s, err := m.withUseCase(camera.VideoCapture)
	if err != nil {
		return nil, err
	}
	spec := s.info.Spec
	var enc *video.Encoder
	return s.startEncoder(func() *video.Encoder {
		enc = video.Start(out, video.Params{Width: spec.Width, Height: spec.Height, FPS: spec.FPS, Audio: audio}, func(ev video.Event) {
			if ev.Type == video.EventFinalize {
				s.clearEncoder(&enc)
			}
			if onEvent != nil {
				onEvent(ev)
			}
		})
		return enc
	})
}

func (m *Manager) withUseCase(u camera.UseCase) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrUnbound
	}
	if !m.current.info.UseCases.Has(u) {
		return nil, fmt.Errorf("%w: %s", ErrUseCaseNotBound, u)
	}
	return m.current, nil
}

func (m *Manager) pump(s *Session) {
	for f := range s.stream.Frames() {
		m.dispatch(s, f)
	}
	close(s.done)

	if !s.unbinding.Load() {
		go m.lost(s)
	}
}

func (m *Manager) lost(s *Session) {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()

	m.logger.Errorf("session: %s camera stream ended unexpectedly", s.info.Selector)
	if enc := s.shutdown(ErrStreamLost); enc != nil {
		<-enc.Done()
	}
	_ = s.stream.Close()
	if m.onLost != nil {
		m.onLost(s.info)
	}
}

func (m *Manager) dispatch(s *Session, f *camera.Frame) {
	useCases := s.info.UseCases

	var (
		jpeg    []byte
		jpegErr error
		encoded bool
	)
	encode := func() ([]byte, error) {
		if !encoded {
			jpeg, jpegErr = f.JPEG(m.quality)
			encoded = true
		}
		return jpeg, jpegErr
	}

	if useCases.Has(camera.Preview) && m.preview.HasSubscribers() {
		if data, err := encode(); err == nil {
			m.preview.Publish(data)
		}
	}
	if useCases.Has(camera.StillCapture) {
		if reqs := s.takeStills(); len(reqs) > 0 {
			data, err := encode()
			for _, r := range reqs {
				r.complete(data, err)
			}
		}
	}
	if useCases.Has(camera.VideoCapture) {
		if enc := s.activeEncoder(); enc != nil {
			if data, err := encode(); err == nil {
				enc.Add(data)
			}
		}
	}
	if useCases.Has(camera.FrameAnalysis) && m.analyzer != nil && m.analyzer.Submit(f) {
		return
	}
	f.Release()
}
