// Package device talks to the neural engine kernel driver.
//
// The driver exposes buffer objects (BOs) through a DRM render node. Each BO
// is allocated with BO_INIT, mapped into the process with mmap at the offset
// the driver hands back, and released with BO_FREE. Jobs are submitted with a
// single blocking SUBMIT ioctl.
package device

// DefaultPath is the render node the engine shows up as on supported machines.
const DefaultPath = "/dev/dri/renderD129"

// Device is an open handle on the engine.
//
// Implementations are not safe for concurrent use.
type Device interface {
	// AllocBuffer allocates a device-shared buffer of size bytes and returns
	// its driver handle and the offset to pass to Map.
	AllocBuffer(size uint64) (handle uint32, offset uint64, err error)

	// FreeBuffer releases a buffer allocated with AllocBuffer.
	FreeBuffer(handle uint32) error

	// Map maps size bytes of the buffer at offset into the process.
	Map(offset uint64, size int) ([]byte, error)

	// Unmap releases a mapping returned by Map.
	Unmap(mem []byte) error

	// Submit issues a job and blocks until the engine reports completion.
	// The return value is 0 or a negative errno, exactly as the driver
	// reported it.
	Submit(args *SubmitArgs) int

	// Close releases the device handle.
	Close() error
}

// Opener opens the device at path.
type Opener func(path string) (Device, error)
