// Package app composes the capture controllers into one object with explicit
// Start and Shutdown hooks.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shutter-cam/pkg/analysis"
	"shutter-cam/pkg/camera"
	"shutter-cam/pkg/clock"
	"shutter-cam/pkg/mainloop"
	"shutter-cam/pkg/permission"
	"shutter-cam/pkg/recording"
	"shutter-cam/pkg/session"
	"shutter-cam/pkg/still"
	"shutter-cam/pkg/storage"
	"shutter-cam/pkg/storage/consts"
	"shutter-cam/pkg/types"
	"shutter-cam/pkg/ui"
	"shutter-cam/pkg/utils"
)

var ErrPermissionDenied = errors.New("required permissions not granted")

const (
	noticeDenied = "Permission request denied"
)

type Config struct {
	Selector camera.Selector
	// EnableVideo adds VideoCapture to the use-cases bound at startup.
	EnableVideo bool
	// RecordAudio asks for an audio-enabled recording; it still depends on
	// the microphone grant.
	RecordAudio bool
	JPEGQuality int
}

func (c Config) useCases() camera.UseCaseSet {
	s := camera.NewUseCaseSet(camera.Preview, camera.StillCapture, camera.FrameAnalysis)
	if c.EnableVideo {
		s = s.With(camera.VideoCapture)
	}
	return s
}

// Controller owns the session, the analyzer, both capture controllers and
// the main loop they run on.
type Controller struct {
	cfg    Config
	logger *zap.SugaredLogger

	loop     *mainloop.Loop
	gate     *permission.Gate
	store    *storage.Store
	clock    *clock.Clock
	panel    *ui.Panel
	ui       ui.Sink
	analyzer *analysis.Analyzer
	session  *session.Manager
	still    *still.Controller
	recorder *recording.Controller

	// resolving is set on the loop from a permission request until its bind
	// has completed.
	resolving bool

	lumaMu sync.RWMutex
	luma   *analysis.Sample

	shutdownOnce sync.Once
	shutdownErr  error
}

type Option func(*Controller)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithClock(cl *clock.Clock) Option {
	return func(c *Controller) {
		c.clock = cl
	}
}

// WithUI adds a sink that receives every UI call besides the panel.
func WithUI(s ui.Sink) Option {
	return func(c *Controller) {
		c.ui = ui.Tee(c.ui, s)
	}
}

func New(cfg Config, driver camera.Driver, store *storage.Store, gate *permission.Gate, opts ...Option) *Controller {
	if cfg.Selector == "" {
		cfg.Selector = camera.Back
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = camera.DefaultJPEGQuality
	}
	c := &Controller{
		cfg:    cfg,
		logger: utils.GetLogger(),
		gate:   gate,
		store:  store,
	}
	c.panel = ui.NewPanel(ui.DefaultHistory, c.now)
	c.ui = c.panel
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.New("", c.logger)
	}

	c.loop = mainloop.New(c.logger)
	c.analyzer = analysis.New(c.onLuminosity, c.logger)
	c.session = session.NewManager(driver, c.analyzer,
		session.WithLogger(c.logger),
		session.WithJPEGQuality(cfg.JPEGQuality),
		session.WithLostHandler(c.onLost),
	)
	c.still = still.New(c.session, store, c.loop, c.logger)
	c.recorder = recording.New(c.session, store, c.loop, c.ui, func() bool {
		return gate.Granted(permission.Microphone)
	}, c.logger)

	return c
}

func (c *Controller) now() time.Time {
	if c.clock == nil {
		return time.Now()
	}
	return c.clock.Now()
}

func (c *Controller) Preview() *session.Preview {
	return c.session.Preview()
}

func (c *Controller) Store() *storage.Store {
	return c.store
}

// Start resolves permissions and binds the default use-cases once they are
// granted.
func (c *Controller) Start() {
	c.loop.Post(c.resolvePermissions)
}

// RetryPermissions re-resolves permissions on explicit user request. It does
// nothing while a session is bound or a request or bind is in flight.
func (c *Controller) RetryPermissions() error {
	return c.loop.Call(func() {
		if _, bound := c.session.Bound(); bound {
			return
		}
		c.resolvePermissions()
	})
}

func (c *Controller) resolvePermissions() {
	if c.resolving {
		c.logger.Debugf("app: permissions already being resolved")
		return
	}
	c.resolving = true
	if c.gate.CheckAll() {
		c.bind(c.cfg.Selector, c.cfg.useCases())
		return
	}
	c.gate.RequestAll(func(granted bool) {
		c.loop.Post(func() {
			if !granted {
				c.resolving = false
				c.logger.Warnf("app: required permissions %v not granted", c.gate.Set().Required())
				c.ui.NotifyUser(noticeDenied)
				return
			}
			c.bind(c.cfg.Selector, c.cfg.useCases())
		})
	})
}

// bind runs on the loop and binds on a worker goroutine.
func (c *Controller) bind(sel camera.Selector, useCases camera.UseCaseSet) {
	c.ui.SetAffordanceEnabled(false)
	go func() {
		err := c.session.Bind(context.Background(), sel, useCases)
		c.loop.Post(func() {
			c.resolving = false
			c.afterBind(useCases, err)
		})
	}()
}

func (c *Controller) afterBind(useCases camera.UseCaseSet, err error) {
	if err != nil {
		c.ui.NotifyUser(fmt.Sprintf("Camera binding failed: %s", err))
		return
	}
	if c.recorder.Phase() == recording.Idle {
		c.ui.SetAffordanceLabel(ui.LabelStart)
		c.ui.SetAffordanceEnabled(useCases.Has(camera.VideoCapture))
	}
}

// Rebind replaces the bound use-cases. It blocks until the device answers,
// so it must not be called from the main loop.
func (c *Controller) Rebind(ctx context.Context, sel camera.Selector, useCases camera.UseCaseSet) error {
	if sel == "" {
		sel = c.cfg.Selector
	}
	if !c.gate.CheckAll() {
		return ErrPermissionDenied
	}
	if err := c.loop.Call(func() { c.ui.SetAffordanceEnabled(false) }); err != nil {
		return err
	}
	err := c.session.Rebind(ctx, sel, useCases)
	if postErr := c.loop.Call(func() { c.afterBind(useCases, err) }); postErr != nil {
		return postErr
	}
	return err
}

// TakePhoto is the photo button.
func (c *Controller) TakePhoto() error {
	var err error
	if callErr := c.loop.Call(func() {
		desc := storage.Descriptor{
			DisplayName: clock.FileName(c.now()),
			MimeType:    consts.MimeJPEG,
			Category:    storage.CategoryImage,
		}
		err = c.still.Capture(desc, still.Callbacks{
			OnSaved: func(uri string) {
				c.ui.NotifyUser("Photo capture succeeded: " + uri)
			},
			OnError: func(err error) {
				c.ui.NotifyUser(fmt.Sprintf("Photo capture failed: %s", err))
			},
		})
	}); callErr != nil {
		return callErr
	}
	return err
}

// ToggleRecording is the video button.
func (c *Controller) ToggleRecording() error {
	var err error
	if callErr := c.loop.Call(func() {
		desc := storage.Descriptor{
			DisplayName: clock.FileName(c.now()),
			MimeType:    consts.MimeAVI,
			Category:    storage.CategoryVideo,
		}
		err = c.recorder.Toggle(desc, c.cfg.RecordAudio)
	}); callErr != nil {
		return callErr
	}
	return err
}

func (c *Controller) onLuminosity(s analysis.Sample) {
	c.logger.Debugf("Average luminosity: %.2f", s.Luma)
	c.lumaMu.Lock()
	c.luma = &s
	c.lumaMu.Unlock()
}

// LatestLuminosity returns the last emitted sample, if any.
func (c *Controller) LatestLuminosity() (analysis.Sample, bool) {
	c.lumaMu.RLock()
	defer c.lumaMu.RUnlock()
	if c.luma == nil {
		return analysis.Sample{}, false
	}
	return *c.luma, true
}

func (c *Controller) onLost(info session.Info) {
	c.loop.Post(func() {
		c.ui.NotifyUser(fmt.Sprintf("Camera %s disconnected", info.Selector))
		c.ui.SetAffordanceEnabled(false)
	})
}

// State is a snapshot for the control panel.
type State struct {
	Affordance    ui.Affordance                  `json:"affordance"`
	Recording     recording.Phase                `json:"recording"`
	Bound         bool                           `json:"bound"`
	Session       *session.Info                  `json:"session,omitempty"`
	Luminosity    *analysis.Sample               `json:"luminosity,omitempty"`
	Cameras       []camera.Selector              `json:"cameras"`
	Analysis      AnalysisStats                  `json:"analysis"`
	Permissions   map[permission.Capability]bool `json:"permissions"`
	ClockSynced   bool                           `json:"clockSynced"`
	Notifications []types.Notification           `json:"notifications"`
}

type AnalysisStats struct {
	Analyzed uint64 `json:"analyzed"`
	Failed   uint64 `json:"failed"`
}

func (c *Controller) State() State {
	s := State{
		Affordance:    c.panel.Affordance(),
		Recording:     c.recorder.Phase(),
		Cameras:       c.session.Cameras(),
		Permissions:   make(map[permission.Capability]bool),
		ClockSynced:   c.clock.Synced(),
		Notifications: c.panel.Notifications(),
	}
	if info, ok := c.session.Bound(); ok {
		s.Bound = true
		s.Session = &info
	}
	if l, ok := c.LatestLuminosity(); ok {
		s.Luminosity = &l
	}
	s.Analysis.Analyzed, s.Analysis.Failed = c.analyzer.Stats()
	for _, p := range c.gate.Set().Names() {
		s.Permissions[p] = c.gate.Granted(p)
	}
	return s
}

// Shutdown finalizes an active recording, unbinds every use-case, closes the
// analyzer and stops the main loop, in that order. Later calls return the
// first result.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.shutdown(ctx)
	})
	return c.shutdownErr
}

func (c *Controller) shutdown(ctx context.Context) error {
	var (
		idle <-chan struct{}
		err  error
	)
	if callErr := c.loop.Call(func() { idle = c.recorder.Shutdown() }); callErr == nil {
		select {
		case <-idle:
		case <-ctx.Done():
			err = fmt.Errorf("wait for recording to finalize: %w", ctx.Err())
		}
	}
	c.session.UnbindAll()
	c.analyzer.Close()
	c.loop.Stop()
	c.logger.Info("app: shutdown")

	return err
}
