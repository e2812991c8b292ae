package camera

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

func TestReleaseOnce(t *testing.T) {
	n := 0
	f := NewFrame(1, Spec{Width: 1, Height: 1, Format: FormatGray}, []byte{0}, func() { n++ })
	f.Release()
	f.Release()
	if n != 1 {
		t.Fatalf("released %d times", n)
	}
	NewFrame(2, Spec{}, nil, nil).Release()
}

func TestLumaPlane(t *testing.T) {
	cases := []struct {
		name   string
		format PixelFormat
		w, h   int
		data   []byte
		want   []byte
	}{
		{"gray", FormatGray, 2, 1, []byte{1, 2, 9}, []byte{1, 2}},
		{"i420", FormatI420, 2, 2, []byte{1, 2, 3, 4, 128, 128}, []byte{1, 2, 3, 4}},
		{"yuyv", FormatYUYV, 2, 1, []byte{10, 128, 20, 128}, []byte{10, 20}},
		{"rgb24", FormatRGB24, 2, 1, []byte{0, 0, 0, 255, 255, 255}, []byte{0, 255}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := NewFrame(1, Spec{Width: c.w, Height: c.h, Format: c.format}, c.data, nil)
			got, err := f.LumaPlane()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, c.want) {
				t.Fatalf("luma = %v, want %v", got, c.want)
			}
		})
	}
}

func TestLumaPlaneMalformed(t *testing.T) {
	for _, f := range []*Frame{
		NewFrame(1, Spec{Width: 4, Height: 4, Format: FormatGray}, []byte{1}, nil),
		NewFrame(1, Spec{Width: 2, Height: 2, Format: FormatYUYV}, []byte{1, 2}, nil),
		NewFrame(1, Spec{Width: 2, Height: 2, Format: FormatRGB24}, []byte{1, 2, 3}, nil),
		NewFrame(1, Spec{Format: FormatJPEG}, []byte("not a jpeg"), nil),
		NewFrame(1, Spec{Format: "bayer"}, []byte{1}, nil),
	} {
		if _, err := f.LumaPlane(); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("%s: err = %v, want ErrMalformedFrame", f.Format, err)
		}
	}
}

func TestJPEG(t *testing.T) {
	gray := NewFrame(1, Spec{Width: 4, Height: 2, Format: FormatGray}, bytes.Repeat([]byte{200}, 8), nil)
	data, err := gray.JPEG(DefaultJPEGQuality)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}

	// a JPEG frame round-trips its luma plane and is copied
	jf := NewFrame(2, Spec{Width: 4, Height: 2, Format: FormatJPEG}, data, nil)
	cp, err := jf.JPEG(DefaultJPEGQuality)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cp, data) || &cp[0] == &data[0] {
		t.Fatal("jpeg frame not copied")
	}
	y, err := jf.LumaPlane()
	if err != nil {
		t.Fatal(err)
	}
	if len(y) != 8 {
		t.Fatalf("luma has %d samples", len(y))
	}
	for _, v := range y {
		if v < 195 || v > 205 {
			t.Fatalf("luma sample %d far from 200", v)
		}
	}

	rgb := NewFrame(3, Spec{Width: 1, Height: 1, Format: FormatRGB24}, []byte{255, 0, 0}, nil)
	if data, err = rgb.JPEG(DefaultJPEGQuality); err != nil {
		t.Fatal(err)
	}
	if _, _, err = image.Decode(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
}
