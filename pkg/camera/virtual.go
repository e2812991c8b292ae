package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	imgutil "shutter-cam/pkg/utils/image"
)

// VirtualDriver generates a moving test pattern so the pipeline can run on
// machines without a camera. Both selectors are available.
type VirtualDriver struct {
	spec Spec

	outstanding atomic.Int64
}

func NewVirtualDriver(width, height, fps int) *VirtualDriver {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &VirtualDriver{spec: Spec{Width: width, Height: height, FPS: fps, Format: FormatJPEG}}
}

func (d *VirtualDriver) Cameras() []Selector {
	return []Selector{Back, Front}
}

// Outstanding is the number of delivered frames not yet released.
func (d *VirtualDriver) Outstanding() int64 {
	return d.outstanding.Load()
}

func (d *VirtualDriver) Open(ctx context.Context, selector Selector, useCases UseCaseSet) (Stream, error) {
	if selector != Back && selector != Front {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, selector)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	s := &virtualStream{
		driver: d,
		spec:   d.spec,
		cancel: cancel,
		frames: make(chan *Frame),
		done:   make(chan struct{}),
		front:  selector == Front,
	}
	go s.run(streamCtx)
	return s, nil
}

type virtualStream struct {
	driver *VirtualDriver
	spec   Spec
	cancel context.CancelFunc
	frames chan *Frame
	done   chan struct{}
	front  bool

	closeOnce sync.Once
}

func (s *virtualStream) Spec() Spec {
	return s.spec
}

func (s *virtualStream) Frames() <-chan *Frame {
	return s.frames
}

func (s *virtualStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.frames)

	ticker := time.NewTicker(time.Second / time.Duration(s.spec.FPS))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := s.render(seq)
			if err != nil {
				continue
			}
			seq++
			s.driver.outstanding.Add(1)
			f := NewFrame(seq, s.spec, data, func() { s.driver.outstanding.Add(-1) })
			select {
			case s.frames <- f:
			case <-ctx.Done():
				f.Release()
				return
			}
		}
	}
}

// render draws a gradient whose base brightness sweeps over time.
func (s *virtualStream) render(seq uint64) ([]byte, error) {
	w, h := s.spec.Width, s.spec.Height
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	base := byte(seq * 4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Y[y*img.YStride+x] = base + byte((x*64)/w)
		}
	}
	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = 128
		if s.front {
			img.Cr[i] = 160
		}
	}
	var buf bytes.Buffer
	if err := imgutil.EncodeJPEG(img, &buf, 80); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *virtualStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
