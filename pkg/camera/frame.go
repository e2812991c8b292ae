package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	imgutil "shutter-cam/pkg/utils/image"
)

type PixelFormat string

const (
	FormatJPEG PixelFormat = "jpeg"
	// FormatGray carries only a luma plane.
	FormatGray PixelFormat = "gray"
	// FormatI420 is planar Y, U, V with 4:2:0 chroma.
	FormatI420 PixelFormat = "i420"
	// FormatYUYV is packed 4:2:2, Y0 U Y1 V.
	FormatYUYV PixelFormat = "yuyv"
	// FormatRGB24 is packed R, G, B.
	FormatRGB24 PixelFormat = "rgb24"
)

const DefaultJPEGQuality = 90

// Frame is one buffer delivered by a stream. The device may hold back
// further frames until Release is called, so every receiver must release.
type Frame struct {
	Seq       uint64
	Format    PixelFormat
	Width     int
	Height    int
	Data      []byte
	Timestamp time.Time

	once    sync.Once
	release func()
}

func NewFrame(seq uint64, spec Spec, data []byte, release func()) *Frame {
	return &Frame{
		Seq:       seq,
		Format:    spec.Format,
		Width:     spec.Width,
		Height:    spec.Height,
		Data:      data,
		Timestamp: time.Now(),
		release:   release,
	}
}

// Release hands the buffer back to the device. Safe to call more than once.
func (f *Frame) Release() {
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}

// LumaPlane returns the first (luma) plane of the frame.
func (f *Frame) LumaPlane() ([]byte, error) {
	n := f.Width * f.Height
	switch f.Format {
	case FormatGray, FormatI420:
		if n == 0 {
			return f.Data, nil
		}
		if len(f.Data) < n {
			return nil, fmt.Errorf("%w: %s plane has %d bytes, want %d", ErrMalformedFrame, f.Format, len(f.Data), n)
		}
		return f.Data[:n], nil
	case FormatYUYV:
		if n == 0 {
			n = len(f.Data) / 2
		}
		if len(f.Data) < 2*n {
			return nil, fmt.Errorf("%w: yuyv has %d bytes, want %d", ErrMalformedFrame, len(f.Data), 2*n)
		}
		y := make([]byte, n)
		for i := range y {
			y[i] = f.Data[2*i]
		}
		return y, nil
	case FormatRGB24:
		y, err := imgutil.RGBToLuma(f.Data, f.Width, f.Height)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedFrame, err)
		}
		return y, nil
	case FormatJPEG:
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedFrame, err)
		}
		return lumaOf(img)
	}
	return nil, fmt.Errorf("%w: unknown format %q", ErrMalformedFrame, f.Format)
}

func lumaOf(img image.Image) ([]byte, error) {
	var (
		pix    []byte
		stride int
	)
	r := img.Bounds()
	switch m := img.(type) {
	case *image.YCbCr:
		pix, stride = m.Y, m.YStride
	case *image.Gray:
		pix, stride = m.Pix, m.Stride
	default:
		return nil, fmt.Errorf("%w: jpeg color model %T has no luma plane", ErrMalformedFrame, img)
	}
	w, h := r.Dx(), r.Dy()
	if stride == w {
		return pix[:w*h], nil
	}
	y := make([]byte, 0, w*h)
	for row := 0; row < h; row++ {
		y = append(y, pix[row*stride:row*stride+w]...)
	}
	return y, nil
}

// JPEG returns the frame encoded as JPEG. JPEG frames are returned as a copy
// so the result outlives Release.
func (f *Frame) JPEG(quality int) ([]byte, error) {
	if f.Format == FormatJPEG {
		return append([]byte(nil), f.Data...), nil
	}
	img, err := f.image()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = imgutil.EncodeJPEG(img, &buf, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *Frame) image() (image.Image, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: %s frame without size", ErrMalformedFrame, f.Format)
	}
	rect := image.Rect(0, 0, f.Width, f.Height)
	y, err := f.LumaPlane()
	if err != nil {
		return nil, err
	}
	switch f.Format {
	case FormatGray:
		return &image.Gray{Pix: y, Stride: f.Width, Rect: rect}, nil
	case FormatI420:
		cw, ch := (f.Width+1)/2, (f.Height+1)/2
		n := f.Width * f.Height
		if len(f.Data) < n+2*cw*ch {
			return nil, fmt.Errorf("%w: i420 chroma truncated", ErrMalformedFrame)
		}
		return &image.YCbCr{
			Y:              y,
			Cb:             f.Data[n : n+cw*ch],
			Cr:             f.Data[n+cw*ch : n+2*cw*ch],
			YStride:        f.Width,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil
	case FormatRGB24:
		return imgutil.DecodeRGB(f.Data, f.Width, f.Height), nil
	case FormatYUYV:
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
		copy(img.Y, y)
		for i := 0; i+3 < len(f.Data) && i/4 < len(img.Cb); i += 4 {
			img.Cb[i/4] = f.Data[i+1]
			img.Cr[i/4] = f.Data[i+3]
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: cannot convert %q", ErrMalformedFrame, f.Format)
}
