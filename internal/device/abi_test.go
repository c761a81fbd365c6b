package device

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoctlNumbers(t *testing.T) {
	// Values match DRM_IOWR(DRM_COMMAND_BASE + nr, struct) on the kernel side.
	assert.Equal(t, uintptr(0xC0186440), ioctlBOInit)
	assert.Equal(t, uintptr(0xC0086441), ioctlBOFree)
	assert.Equal(t, uintptr(0xC0986442), ioctlSubmit)
}

func TestSubmitArgs_Layout(t *testing.T) {
	var a SubmitArgs
	assert.Equal(t, uintptr(0), unsafe.Offsetof(a.TaskSize))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(a.TDCount))
	assert.Equal(t, uintptr(12), unsafe.Offsetof(a.TDSize))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(a.Handles))
	assert.Equal(t, uintptr(144), unsafe.Offsetof(a.FifoHandle))
	assert.Equal(t, uintptr(152), unsafe.Sizeof(a))
}

func TestSubmitArgs_MarshalBinary(t *testing.T) {
	a := SubmitArgs{
		TaskSize:   0x1122334455667788,
		TDCount:    3,
		TDSize:     0x274,
		FifoHandle: 9,
	}
	a.Handles[0] = 4
	a.Handles[MaxTiles-1] = 7

	b, err := a.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, 152)

	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(b[0:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[8:]))
	assert.Equal(t, uint32(0x274), binary.LittleEndian.Uint32(b[12:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(b[16:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[20:]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(b[16+4*(MaxTiles-1):]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(b[144:]))
	assert.Equal(t, []byte{0, 0, 0, 0}, b[148:])
}
