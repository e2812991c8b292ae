//go:build linux && cgo

package camera

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"shutter-cam/pkg/utils"
)

// V4L2Driver opens MJPEG streams through go4vl. One MJPEG stream serves every
// use-case: JPEG frames feed preview, stills and recordings directly and the
// analyzer decodes the luma plane.
type V4L2Driver struct {
	cfg    V4L2Config
	logger *zap.SugaredLogger
}

func NewV4L2Driver(cfg V4L2Config, logger *zap.SugaredLogger) *V4L2Driver {
	if logger == nil {
		logger = utils.GetLogger()
	}
	cfg.setDefaults()
	return &V4L2Driver{cfg: cfg, logger: logger}
}

func (d *V4L2Driver) Cameras() []Selector {
	var res []Selector
	for _, sel := range []Selector{Back, Front} {
		p, ok := d.cfg.Devices[sel]
		if !ok {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			res = append(res, sel)
		}
	}
	return res
}

func (d *V4L2Driver) Open(ctx context.Context, selector Selector, useCases UseCaseSet) (Stream, error) {
	devName, ok := d.cfg.Devices[selector]
	if !ok {
		return nil, fmt.Errorf("%w: no device for %s camera", ErrDeviceUnavailable, selector)
	}
	if _, err := os.Stat(devName); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, err)
	}

	d.logger.Infof("open %s in %d*%d@%d for %s", devName, d.cfg.Width, d.cfg.Height, d.cfg.FPS, useCases)
	dev, err := device.Open(
		devName,
		device.WithBufferSize(2),
		device.WithFPS(uint32(d.cfg.FPS)),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       uint32(d.cfg.Width),
			Height:      uint32(d.cfg.Height),
		}),
	)
	if err != nil {
		if IsBusyErr(err) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	if err = dev.Start(streamCtx); err != nil {
		cancel()
		_ = dev.Close()
		if IsBusyErr(err) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, err)
		}
		return nil, err
	}

	spec := Spec{Width: d.cfg.Width, Height: d.cfg.Height, FPS: d.cfg.FPS, Format: FormatJPEG}
	if pf, err := v4l2.GetPixFormat(dev.Fd()); err == nil {
		spec.Width, spec.Height = int(pf.Width), int(pf.Height)
	}

	s := &v4l2Stream{
		spec:   spec,
		dev:    dev,
		cancel: cancel,
		frames: make(chan *Frame),
		done:   make(chan struct{}),
		logger: d.logger,
	}
	s.applySettings(d.cfg.Settings)
	go s.pump(streamCtx)

	return s, nil
}

type v4l2Stream struct {
	spec   Spec
	dev    *device.Device
	cancel context.CancelFunc
	frames chan *Frame
	done   chan struct{}
	logger *zap.SugaredLogger

	closeOnce sync.Once
	closeErr  error
}

func (s *v4l2Stream) Spec() Spec {
	return s.spec
}

func (s *v4l2Stream) Frames() <-chan *Frame {
	return s.frames
}

func (s *v4l2Stream) pump(ctx context.Context) {
	defer close(s.done)
	defer close(s.frames)

	out := s.dev.GetOutput()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-out:
			if !ok {
				return
			}
			if len(data) == 0 {
				continue
			}
			seq++
			// the driver reuses its mmap buffers once the next frame is queued
			f := NewFrame(seq, s.spec, append([]byte(nil), data...), nil)
			select {
			case s.frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *v4l2Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		// let the go4vl stream goroutine observe ctx.Done and stop the device
		// before the fd is closed
		time.Sleep(100 * time.Millisecond)
		s.closeErr = s.dev.Close()
	})
	return s.closeErr
}

func (s *v4l2Stream) applySettings(settings map[uint32]int32) {
	for k, v := range settings {
		if err := s.dev.SetControlValue(v4l2.CtrlID(k), v4l2.CtrlValue(v)); err != nil {
			s.logger.Warnf("set ctrl(%d) to %d, err: %s", k, v, err)
		}
	}
}
