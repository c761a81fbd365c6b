//go:build !linux

package device

import (
	"errors"
	"fmt"
)

var errUnsupported = errors.New("engine driver is only available on linux")

// Open always fails: the engine driver only exists on Linux.
func Open(path string) (Device, error) {
	return nil, fmt.Errorf("open %s: %w", path, errUnsupported)
}
