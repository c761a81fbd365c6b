package tile

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denseOf(s Shape, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, s.DenseSize())
	for i := 0; i < s.Elems(); i++ {
		// Keep every element non-zero so a missed copy is visible.
		binary.LittleEndian.PutUint16(b[i*ElemSize:], uint16(r.Intn(0xFFFE)+1))
	}
	return b
}

func at(b []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(b[i*ElemSize:])
}

func TestShape_Geometry(t *testing.T) {
	s := Shape{N: 1, C: 3, H: 224, W: 224, P: 512, R: 256}
	assert.Equal(t, 2, s.NewH())
	assert.Equal(t, 128, s.NewW())
	assert.Equal(t, 3*224*224*2, s.DenseSize())
	assert.Equal(t, 3*512, s.TileSize())
}

func TestShape_Validate(t *testing.T) {
	t.Run("Width overflows row", func(t *testing.T) {
		// 224 elements cannot fit a 256-byte row of 128 elements.
		s := Shape{N: 1, C: 3, H: 224, W: 224, P: 512, R: 256}
		assert.ErrorIs(t, s.Validate(1<<20), ErrShape)
	})

	t.Run("Height overflows plane", func(t *testing.T) {
		s := Shape{N: 1, C: 1, H: 3, W: 8, P: 128, R: 64}
		assert.ErrorIs(t, s.Validate(1<<20), ErrShape)
	})

	t.Run("Tile buffer too small", func(t *testing.T) {
		s := Shape{N: 1, C: 2, H: 2, W: 8, P: 128, R: 64}
		assert.ErrorIs(t, s.Validate(255), ErrShape)
		assert.NoError(t, s.Validate(256))
	})

	t.Run("Zero pitch", func(t *testing.T) {
		s := Shape{N: 1, C: 1, H: 1, W: 1, P: 64, R: 0}
		assert.ErrorIs(t, s.Validate(64), ErrShape)
	})

	t.Run("Empty dimension", func(t *testing.T) {
		s := Shape{N: 0, C: 1, H: 1, W: 1, P: 64, R: 64}
		assert.ErrorIs(t, s.Validate(64), ErrShape)
	})

	t.Run("Odd pitch", func(t *testing.T) {
		s := Shape{N: 1, C: 1, H: 1, W: 1, P: 9, R: 3}
		assert.ErrorIs(t, s.Validate(9), ErrShape)
	})

	t.Run("Plane not a multiple of pitch", func(t *testing.T) {
		// Two 64-byte rows fit in 130 bytes, two 100-byte planes do not.
		s := Shape{N: 2, C: 1, H: 1, W: 4, P: 100, R: 64}
		assert.ErrorIs(t, s.Validate(130), ErrShape)
		assert.ErrorIs(t, s.Validate(1<<20), ErrShape)
	})

	t.Run("Size overflows int", func(t *testing.T) {
		for _, s := range []Shape{
			{N: 1 << 31, C: 1 << 31, H: 1, W: 1, P: 2, R: 2},
			{N: 1 << 62, C: 1, H: 1, W: 1, P: 2, R: 2},
			{N: 1 << 40, C: 1 << 20, H: 1, W: 1, P: 1 << 10, R: 2},
		} {
			assert.ErrorIs(t, s.Validate(64), ErrShape, s.String())
		}
	})
}

func TestTile_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		newW := r.Intn(40) + 1
		newH := r.Intn(6) + 1
		s := Shape{
			N: r.Intn(3) + 1,
			C: r.Intn(4) + 1,
			H: r.Intn(newH) + 1,
			W: r.Intn(newW) + 1,
			R: newW * ElemSize,
		}
		s.P = newH * s.R
		require.NoError(t, s.Validate(s.TileSize()), s.String())

		src := denseOf(s, int64(i))
		tl := make([]byte, s.TileSize())
		Tile(tl, src, s)

		back := make([]byte, s.DenseSize())
		for j := range back {
			back[j] = 0xEE
		}
		Untile(back, tl, s)
		require.Equal(t, src, back, s.String())
	}
}

func TestTile_LeavesPaddingAlone(t *testing.T) {
	s := Shape{N: 2, C: 3, H: 3, W: 5, P: 64, R: 16} // 4 rows of 8 elements
	src := denseOf(s, 7)

	const sentinel = 0xA5
	tl := make([]byte, s.TileSize()+32)
	for i := range tl {
		tl[i] = sentinel
	}
	Tile(tl, src, s)

	newH, newW := s.NewH(), s.NewW()
	for nc := 0; nc < s.N*s.C; nc++ {
		for h := 0; h < newH; h++ {
			for w := 0; w < newW; w++ {
				off := ((nc*newH+h)*newW + w) * ElemSize
				if h < s.H && w < s.W {
					want := at(src, (nc*s.H+h)*s.W+w)
					assert.Equal(t, want, binary.LittleEndian.Uint16(tl[off:]), "nc=%d h=%d w=%d", nc, h, w)
				} else {
					assert.Equal(t, []byte{sentinel, sentinel}, tl[off:off+2], "padding nc=%d h=%d w=%d", nc, h, w)
				}
			}
		}
	}
	// Nothing past the tile.
	for i := s.TileSize(); i < len(tl); i++ {
		assert.Equal(t, byte(sentinel), tl[i])
	}
}

func TestUntile_ZeroFillsDestination(t *testing.T) {
	s := Shape{N: 1, C: 2, H: 2, W: 3, P: 32, R: 16}
	tl := make([]byte, s.TileSize())
	for i := range tl {
		tl[i] = 0xFF
	}
	dst := make([]byte, s.DenseSize()+4)
	for i := range dst {
		dst[i] = 0x11
	}
	Untile(dst, tl, s)

	for i := 0; i < s.Elems(); i++ {
		assert.Equal(t, uint16(0xFFFF), at(dst, i))
	}
	// Bytes beyond the dense tensor are not part of the transform.
	assert.Equal(t, []byte{0x11, 0x11, 0x11, 0x11}, dst[s.DenseSize():])
}

func TestTile_Scenario(t *testing.T) {
	// Three 2x100 channels in 256-byte rows, two rows per 512-byte plane.
	s := Shape{N: 1, C: 3, H: 2, W: 100, P: 512, R: 256}
	require.NoError(t, s.Validate(s.TileSize()))

	src := denseOf(s, 1)
	tl := make([]byte, s.TileSize())
	Tile(tl, src, s)

	for c := 0; c < 3; c++ {
		for h := 0; h < 2; h++ {
			row := tl[c*512+h*256:]
			assert.Equal(t, src[(c*2+h)*200:(c*2+h+1)*200], row[:200])
			assert.Equal(t, make([]byte, 56), row[200:256])
		}
	}
}
