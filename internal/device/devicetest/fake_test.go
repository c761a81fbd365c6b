package devicetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_Lifecycle(t *testing.T) {
	f := New()
	d, err := f.Opener()("/dev/null")
	require.NoError(t, err)
	assert.Equal(t, 1, f.OpenHandles())

	h, off, err := d.AllocBuffer(64)
	require.NoError(t, err)
	mem, err := d.Map(off, 64)
	require.NoError(t, err)
	mem[0] = 0xAB
	assert.Equal(t, byte(0xAB), f.Buffer(h)[0])
	assert.Equal(t, 1, f.LiveMappings())

	require.NoError(t, d.Unmap(mem))
	require.NoError(t, d.FreeBuffer(h))
	require.NoError(t, d.Close())

	assert.Equal(t, 0, f.LiveBuffers())
	assert.Equal(t, 0, f.LiveMappings())
	assert.Equal(t, 0, f.OpenHandles())
	assert.Equal(t, []string{"open /dev/null", "alloc 1", "map 1", "unmap 1", "free 1", "close"}, f.Ops)
}

func TestFake_Injection(t *testing.T) {
	f := New()
	f.FailAlloc = 2
	_, _, err := f.AllocBuffer(8)
	require.NoError(t, err)
	_, _, err = f.AllocBuffer(8)
	assert.ErrorIs(t, err, ErrInjected)

	f.FailOpen = true
	_, err = f.Opener()("x")
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, f.OpenHandles())
}
