package image

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"testing"
)

// 2x2: red, green / blue, white
var rgb = []byte{
	255, 0, 0, 0, 255, 0,
	0, 0, 255, 255, 255, 255,
}

func TestRGBToLuma(t *testing.T) {
	y, err := RGBToLuma(rgb, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		want, _, _ := color.RGBToYCbCr(rgb[i*3], rgb[i*3+1], rgb[i*3+2])
		if y[i] != want {
			t.Errorf("pixel %d: luma %d, want %d", i, y[i], want)
		}
	}

	if _, err = RGBToLuma(rgb[:5], 2, 2); err == nil {
		t.Fatal("short buffer accepted")
	}
}

func TestDecodeEncode(t *testing.T) {
	img := DecodeRGB(rgb, 2, 2)
	if c := color.RGBAModel.Convert(img.At(0, 1)).(color.RGBA); c != (color.RGBA{B: 255, A: 255}) {
		t.Fatalf("pixel (0,1) = %+v", c)
	}

	var buf bytes.Buffer
	if err := EncodeJPEG(img, &buf, 95); err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 2 || cfg.Height != 2 {
		t.Fatalf("decoded %dx%d", cfg.Width, cfg.Height)
	}
}
