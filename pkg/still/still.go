// Package still takes single photos from the bound session and saves them.
package still

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shutter-cam/pkg/session"
	"shutter-cam/pkg/storage"
	"shutter-cam/pkg/utils"
)

var ErrNotBound = errors.New("still capture use-case not bound")

// Callbacks receive the outcome on the main loop. Exactly one of them runs
// per accepted request.
type Callbacks struct {
	OnSaved func(uri string)
	OnError func(err error)
}

// Camera is the part of session.Manager the controller needs.
type Camera interface {
	CaptureStill(handler func(jpeg []byte, err error)) error
}

type SinkFactory interface {
	CreateSink(d storage.Descriptor) (*storage.Sink, error)
}

// Poster runs callbacks on the main loop.
type Poster interface {
	Post(fn func()) bool
}

type Controller struct {
	camera Camera
	store  SinkFactory
	loop   Poster
	logger *zap.SugaredLogger
}

func New(camera Camera, store SinkFactory, loop Poster, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Controller{
		camera: camera,
		store:  store,
		loop:   loop,
		logger: logger,
	}
}

// Capture issues one still request. It returns ErrNotBound, and no callback
// runs, when the session has no StillCapture use-case.
func (c *Controller) Capture(desc storage.Descriptor, cb Callbacks) error {
	err := c.camera.CaptureStill(func(data []byte, err error) {
		uri, err := c.save(desc, data, err)
		c.loop.Post(func() {
			if err != nil {
				c.logger.Errorf("photo capture failed: %s", err)
				if cb.OnError != nil {
					cb.OnError(err)
				}
				return
			}
			c.logger.Infof("photo capture succeeded: %s", uri)
			if cb.OnSaved != nil {
				cb.OnSaved(uri)
			}
		})
	})
	if errors.Is(err, session.ErrUnbound) || errors.Is(err, session.ErrUseCaseNotBound) {
		c.logger.Warnf("ignore photo request %q: %s", desc.DisplayName, err)
		return fmt.Errorf("%w: %s", ErrNotBound, err)
	}
	return err
}

func (c *Controller) save(desc storage.Descriptor, data []byte, captureErr error) (string, error) {
	if captureErr != nil {
		return "", fmt.Errorf("capture: %w", captureErr)
	}
	sink, err := c.store.CreateSink(desc)
	if err != nil {
		return "", err
	}
	return sink.WriteOnce(data)
}
