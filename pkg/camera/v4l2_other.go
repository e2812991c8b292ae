//go:build !linux || !cgo

package camera

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// V4L2Driver is only backed by hardware on linux.
type V4L2Driver struct {
	cfg V4L2Config
}

func NewV4L2Driver(cfg V4L2Config, _ *zap.SugaredLogger) *V4L2Driver {
	cfg.setDefaults()
	return &V4L2Driver{cfg: cfg}
}

func (d *V4L2Driver) Cameras() []Selector {
	return nil
}

func (d *V4L2Driver) Open(context.Context, Selector, UseCaseSet) (Stream, error) {
	return nil, fmt.Errorf("%w: v4l2 is not available on %s", ErrDeviceUnavailable, runtime.GOOS)
}
