package camera

import (
	"errors"
	"strings"
)

var (
	ErrDeviceUnavailable      = errors.New("camera device unavailable")
	ErrDeviceBusy             = errors.New("camera device busy")
	ErrUnsupportedCombination = errors.New("use-case combination not supported")
	ErrStreamClosed           = errors.New("stream closed")
	ErrMalformedFrame         = errors.New("malformed frame")
)

// IsBusyErr reports whether a driver error means the device is held elsewhere.
func IsBusyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceBusy) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "busy") || strings.Contains(s, "ebusy")
}
