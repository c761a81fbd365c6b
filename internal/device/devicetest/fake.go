// Package devicetest provides an in-memory device.Device for tests.
package devicetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/23skdu/longbow-ane/internal/device"
)

// ErrInjected is returned by operations a test asked to fail.
var ErrInjected = errors.New("devicetest: injected failure")

var _ device.Device = (*Fake)(nil)

// Fake keeps buffers in ordinary Go memory. Offsets handed out by
// AllocBuffer identify the buffer so Map can find it again.
type Fake struct {
	mu sync.Mutex

	// FailAlloc and FailMap fail the n-th (1-based) AllocBuffer/Map call.
	// Zero never fails.
	FailAlloc int
	FailMap   int

	// FailOpen makes the Opener fail.
	FailOpen bool

	// SubmitStatus is returned by Submit.
	SubmitStatus int

	// Submits records every SubmitArgs passed to Submit.
	Submits []device.SubmitArgs

	// Ops is the log of successful operations, e.g. "alloc 1", "map 1",
	// "unmap 1", "free 1", "close".
	Ops []string

	allocs     int
	maps       int
	nextHandle uint32
	buffers    map[uint32][]byte
	mapped     map[*byte]uint32
	open       int
}

// New returns an open fake device.
func New() *Fake {
	return &Fake{
		nextHandle: 1,
		buffers:    make(map[uint32][]byte),
		mapped:     make(map[*byte]uint32),
	}
}

// Opener returns a device.Opener that hands out f.
func (f *Fake) Opener() device.Opener {
	return func(path string) (device.Device, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.FailOpen {
			return nil, fmt.Errorf("open %s: %w", path, ErrInjected)
		}
		f.open++
		f.Ops = append(f.Ops, "open "+path)
		return f, nil
	}
}

func offsetOf(h uint32) uint64 { return uint64(h) << 12 }

func (f *Fake) AllocBuffer(size uint64) (uint32, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocs++
	if f.allocs == f.FailAlloc {
		return 0, 0, ErrInjected
	}
	h := f.nextHandle
	f.nextHandle++
	f.buffers[h] = make([]byte, size)
	f.Ops = append(f.Ops, fmt.Sprintf("alloc %d", h))
	return h, offsetOf(h), nil
}

func (f *Fake) FreeBuffer(handle uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buffers[handle]; !ok {
		return fmt.Errorf("devicetest: free of unknown handle %d", handle)
	}
	delete(f.buffers, handle)
	f.Ops = append(f.Ops, fmt.Sprintf("free %d", handle))
	return nil
}

func (f *Fake) Map(offset uint64, size int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maps++
	if f.maps == f.FailMap {
		return nil, ErrInjected
	}
	h := uint32(offset >> 12)
	buf, ok := f.buffers[h]
	if !ok || size > len(buf) || size == 0 {
		return nil, fmt.Errorf("devicetest: bad mapping offset=0x%x size=%d", offset, size)
	}
	mem := buf[:size:size]
	f.mapped[&mem[0]] = h
	f.Ops = append(f.Ops, fmt.Sprintf("map %d", h))
	return mem, nil
}

func (f *Fake) Unmap(mem []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(mem) == 0 {
		return errors.New("devicetest: unmap of empty region")
	}
	h, ok := f.mapped[&mem[0]]
	if !ok {
		return errors.New("devicetest: unmap of unknown region")
	}
	delete(f.mapped, &mem[0])
	f.Ops = append(f.Ops, fmt.Sprintf("unmap %d", h))
	return nil
}

func (f *Fake) Submit(args *device.SubmitArgs) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submits = append(f.Submits, *args)
	return f.SubmitStatus
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open == 0 {
		return errors.New("devicetest: close of unopened device")
	}
	f.open--
	f.Ops = append(f.Ops, "close")
	return nil
}

// LiveBuffers returns the number of allocated, unreleased buffers.
func (f *Fake) LiveBuffers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffers)
}

// LiveMappings returns the number of regions mapped and not yet unmapped.
func (f *Fake) LiveMappings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mapped)
}

// OpenHandles returns the number of opens not yet matched by a Close.
func (f *Fake) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Buffer returns the backing memory of handle, or nil.
func (f *Fake) Buffer(handle uint32) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffers[handle]
}
