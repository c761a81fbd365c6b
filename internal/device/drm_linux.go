//go:build linux

package device

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Check interface compliance
var _ Device = (*DRMDevice)(nil)

// DRMDevice is a Device backed by a DRM render node.
type DRMDevice struct {
	fd   int
	path string
}

// Open opens the render node at path. It has the Opener signature.
func Open(path string) (Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, unix.S_IRUSR|unix.S_IWUSR)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DRMDevice{fd: fd, path: path}, nil
}

func (d *DRMDevice) ioctl(req uintptr, arg unsafe.Pointer) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	return errno
}

func (d *DRMDevice) AllocBuffer(size uint64) (uint32, uint64, error) {
	args := BOInitArgs{Size: size}
	if errno := d.ioctl(ioctlBOInit, unsafe.Pointer(&args)); errno != 0 {
		ioctlErrors.WithLabelValues("bo_init").Inc()
		return 0, 0, fmt.Errorf("bo_init size=%d: %w", size, errno)
	}
	buffersLive.Inc()
	return args.Handle, args.Offset, nil
}

func (d *DRMDevice) FreeBuffer(handle uint32) error {
	args := BOFreeArgs{Handle: handle}
	if errno := d.ioctl(ioctlBOFree, unsafe.Pointer(&args)); errno != 0 {
		ioctlErrors.WithLabelValues("bo_free").Inc()
		return fmt.Errorf("bo_free handle=%d: %w", handle, errno)
	}
	buffersLive.Dec()
	return nil
}

func (d *DRMDevice) Map(offset uint64, size int) ([]byte, error) {
	mem, err := unix.Mmap(d.fd, int64(offset), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap offset=0x%x size=%d: %w", offset, size, err)
	}
	bytesMapped.Add(float64(len(mem)))
	return mem, nil
}

func (d *DRMDevice) Unmap(mem []byte) error {
	n := len(mem)
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	bytesMapped.Sub(float64(n))
	return nil
}

func (d *DRMDevice) Submit(args *SubmitArgs) int {
	if errno := d.ioctl(ioctlSubmit, unsafe.Pointer(args)); errno != 0 {
		ioctlErrors.WithLabelValues("submit").Inc()
		return -int(errno)
	}
	return 0
}

func (d *DRMDevice) Close() error {
	return unix.Close(d.fd)
}

// Path returns the node the device was opened from.
func (d *DRMDevice) Path() string {
	return d.path
}
