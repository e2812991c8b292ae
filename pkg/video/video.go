package video

import (
	"errors"
	"fmt"

	"github.com/icza/mjpeg"
)

var errNotJPEG = errors.New("frame is not a jpeg")

// aviBuilder appends JPEG frames to an MJPEG AVI file.
type aviBuilder struct {
	aw     mjpeg.AviWriter
	frames int
	bytes  int64
}

func newAVIBuilder(path string, p Params) (*aviBuilder, error) {
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 {
		return nil, fmt.Errorf("invalid video params %dx%d@%d", p.Width, p.Height, p.FPS)
	}
	aw, err := mjpeg.New(path, int32(p.Width), int32(p.Height), int32(p.FPS))
	if err != nil {
		return nil, err
	}

	return &aviBuilder{aw: aw}, nil
}

// add writes one frame. Buffers without a JPEG SOI marker are refused with
// errNotJPEG and leave the file untouched.
func (b *aviBuilder) add(frame []byte) error {
	if len(frame) < 2 || frame[0] != 0xFF || frame[1] != 0xD8 {
		return errNotJPEG
	}
	if err := b.aw.AddFrame(frame); err != nil {
		return err
	}
	b.frames++
	b.bytes += int64(len(frame))

	return nil
}

func (b *aviBuilder) close() error {
	return b.aw.Close()
}
