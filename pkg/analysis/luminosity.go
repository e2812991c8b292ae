package analysis

import (
	"errors"
)

var ErrEmptyPlane = errors.New("empty luma plane")

// Luminosity is the arithmetic mean of the plane's bytes read as unsigned
// values. The sum is exact and the single division happens in float64, so
// no rounding is applied beyond float64 precision.
func Luminosity(plane []byte) (float64, error) {
	if len(plane) == 0 {
		return 0, ErrEmptyPlane
	}
	var sum uint64
	for _, b := range plane {
		sum += uint64(b)
	}
	return float64(sum) / float64(len(plane)), nil
}
