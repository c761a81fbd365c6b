package device

import (
	"encoding/binary"
	"unsafe"
)

// MaxTiles is the number of tile slots in a job. It bounds every per-tile
// array in the driver interface.
const MaxTiles = 32

// ioctl request encoding, see include/uapi/asm-generic/ioctl.h.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

const (
	drmIoctlBase   = 'd'
	drmCommandBase = 0x40

	drmANEBOInit = 0x00
	drmANEBOFree = 0x01
	drmANESubmit = 0x02
)

func iowr(typ, nr, size uintptr) uintptr {
	return (iocRead|iocWrite)<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNRShift
}

// BOInitArgs is struct drm_ane_bo_init.
type BOInitArgs struct {
	Handle uint32 // out
	_      uint32
	Size   uint64 // in
	Offset uint64 // out, fake offset for mmap
}

// BOFreeArgs is struct drm_ane_bo_free.
type BOFreeArgs struct {
	Handle uint32
	_      uint32
}

// SubmitArgs is struct drm_ane_submit. Field order and sizes are part of the
// kernel ABI:
//
//	offset  size  field
//	0       8     TaskSize    total size of the compiled task program
//	8       4     TDCount     number of task descriptor entries
//	12      4     TDSize      size of each task descriptor entry
//	16      128   Handles     BO handle per physical tile slot, 0 if unused
//	144     4     FifoHandle  BO handle of the control (fifo) channel
//	148     4     padding
//
// Total 152 bytes, little endian.
type SubmitArgs struct {
	TaskSize   uint64
	TDCount    uint32
	TDSize     uint32
	Handles    [MaxTiles]uint32
	FifoHandle uint32
	_          uint32
}

const (
	boInitArgsSize = 24
	boFreeArgsSize = 8
	submitArgsSize = 152
)

// Fail the build if a struct drifts from the kernel layout. The index is out
// of range when the struct is too big and overflows when it is too small.
var (
	_ = [1]struct{}{}[unsafe.Sizeof(BOInitArgs{})-boInitArgsSize]
	_ = [1]struct{}{}[unsafe.Sizeof(BOFreeArgs{})-boFreeArgsSize]
	_ = [1]struct{}{}[unsafe.Sizeof(SubmitArgs{})-submitArgsSize]
)

var (
	ioctlBOInit = iowr(drmIoctlBase, drmCommandBase+drmANEBOInit, boInitArgsSize)
	ioctlBOFree = iowr(drmIoctlBase, drmCommandBase+drmANEBOFree, boFreeArgsSize)
	ioctlSubmit = iowr(drmIoctlBase, drmCommandBase+drmANESubmit, submitArgsSize)
)

// MarshalBinary returns the byte image the kernel reads.
func (a *SubmitArgs) MarshalBinary() ([]byte, error) {
	b := make([]byte, submitArgsSize)
	binary.LittleEndian.PutUint64(b[0:], a.TaskSize)
	binary.LittleEndian.PutUint32(b[8:], a.TDCount)
	binary.LittleEndian.PutUint32(b[12:], a.TDSize)
	for i, h := range a.Handles {
		binary.LittleEndian.PutUint32(b[16+4*i:], h)
	}
	binary.LittleEndian.PutUint32(b[144:], a.FifoHandle)
	return b, nil
}
