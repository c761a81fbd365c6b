package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFloat32(t *testing.T) {
	dst := make([]byte, 6)
	require.NoError(t, EncodeFloat32(dst, []float32{1.0, -2.0, 0.5}))

	// 1.0 = 0x3c00, -2.0 = 0xc000, 0.5 = 0x3800
	assert.Equal(t, []uint16{0x3c00, 0xc000, 0x3800}, Uint16s(dst))
	assert.Equal(t, []float32{1.0, -2.0, 0.5}, DecodeFloat32(dst))

	assert.Error(t, EncodeFloat32(make([]byte, 3), []float32{1, 2}))
}
