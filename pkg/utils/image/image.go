// Package image converts packed RGB24 buffers, as delivered by some V4L2
// devices, into planes and images.
package image

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

func RGBToRGBA(in, out []byte, width, height int) {
	outStride := width * 4
	inStride := len(in) / height

	for i := 0; i < height; i++ {
		oIndex := i * outStride
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			out[oIndex] = in[iIndex]
			out[oIndex+1] = in[iIndex+1]
			out[oIndex+2] = in[iIndex+2]
			out[oIndex+3] = 0xFF

			oIndex += 4
			iIndex += 3
		}
	}
}

// RGBToLuma returns the BT.601 luma plane of an RGB24 buffer, rounded the
// same way as color.RGBToYCbCr.
func RGBToLuma(in []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(in) < width*height*3 {
		return nil, fmt.Errorf("rgb24 buffer has %d bytes, want %d*%d*3", len(in), width, height)
	}
	inStride := len(in) / height
	out := make([]byte, width*height)
	for i := 0; i < height; i++ {
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			r, g, b := int32(in[iIndex]), int32(in[iIndex+1]), int32(in[iIndex+2])
			out[i*width+j] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
			iIndex += 3
		}
	}
	return out, nil
}

func DecodeRGB(data []byte, width, height int) image.Image {
	i := image.NewRGBA(image.Rect(0, 0, width, height))
	RGBToRGBA(data, i.Pix, width, height)

	return i
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}
