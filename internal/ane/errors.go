package ane

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceOpen is returned by Init when the device cannot be opened.
	ErrDeviceOpen = errors.New("ane: failed to open device")

	// ErrChannelInit is returned by Init when a channel cannot be
	// allocated or mapped.
	ErrChannelInit = errors.New("ane: channel init failed")

	// ErrIndexOutOfRange is returned when a port does not resolve to a
	// channel. No memory is touched.
	ErrIndexOutOfRange = errors.New("ane: port index out of range")

	// ErrShortBuffer is returned when a caller buffer is smaller than the
	// transfer it is used for.
	ErrShortBuffer = errors.New("ane: buffer too small")

	// ErrClosed is returned by operations on a freed context.
	ErrClosed = errors.New("ane: context is freed")
)

// SubmitError carries the status the driver returned for a job.
type SubmitError struct {
	Code int
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("ane: submit failed with status %d", e.Code)
}

// Status turns an Exec result back into the driver's signed status: 0 for
// nil, the driver's value for a SubmitError and -1 for anything else.
func Status(err error) int {
	if err == nil {
		return 0
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Code
	}
	return -1
}
