//go:build !gocv

package capture

import "errors"

// ErrDeviceUnsupported is returned when the binary was built without camera support.
var ErrDeviceUnsupported = errors.New("camera device support not compiled in, rebuild with -tags gocv")

// NewDeviceSource reports that local cameras are unavailable in this build.
func NewDeviceSource(device int) (Source, error) {
	return nil, ErrDeviceUnsupported
}
