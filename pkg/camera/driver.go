package camera

import (
	"context"
)

// Spec describes what an open stream delivers.
type Spec struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	FPS    int         `json:"fps"`
	Format PixelFormat `json:"format"`
}

// Driver is the camera device boundary.
type Driver interface {
	// Cameras lists the selectors that currently resolve to a device.
	Cameras() []Selector
	// Open starts delivering frames for the given use-cases. It either
	// returns a running stream or leaves the device untouched.
	Open(ctx context.Context, selector Selector, useCases UseCaseSet) (Stream, error)
}

// Stream is one open device configuration. Frames is closed when the stream
// ends, either through Close or because the device went away. Every frame
// received must be released.
type Stream interface {
	Spec() Spec
	Frames() <-chan *Frame
	Close() error
}
