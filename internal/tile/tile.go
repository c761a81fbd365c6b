// Package tile converts between dense row-major tensors and the padded tile
// layout the engine reads and writes.
//
// Elements are 16 bits wide. A dense tensor is addressed as [N][C][H][W]; a
// tile as [N][C][P/R][R/2], so every row of a tile is R bytes long and every
// (n, c) plane is P bytes long. Only the leading [H][W] corner of each tile
// plane carries data.
package tile

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ElemSize is the width of one tensor element in bytes.
const ElemSize = 2

// ErrShape reports a shape that does not fit its tile.
var ErrShape = errors.New("tile: bad shape")

// Shape is the per-slot geometry from the model descriptor.
type Shape struct {
	N int `cbor:"n" json:"n"` // batch
	C int `cbor:"c" json:"c"` // channels
	H int `cbor:"h" json:"h"` // dense height
	W int `cbor:"w" json:"w"` // dense width, in elements
	P int `cbor:"p" json:"p"` // padded plane size, bytes
	R int `cbor:"r" json:"r"` // row pitch, bytes
}

// NewH is the number of rows in a tile plane.
func (s Shape) NewH() int { return s.P / s.R }

// NewW is the number of elements in a tile row.
func (s Shape) NewW() int { return s.R / ElemSize }

// Elems is the number of elements in the dense tensor.
func (s Shape) Elems() int { return s.N * s.C * s.H * s.W }

// DenseSize is the byte size of the dense tensor.
func (s Shape) DenseSize() int { return s.Elems() * ElemSize }

// TileSize is the number of bytes Tile and Untile address in a tile buffer.
func (s Shape) TileSize() int { return s.N * s.C * s.NewH() * s.NewW() * ElemSize }

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%dx%d P=%d R=%d", s.N, s.C, s.H, s.W, s.P, s.R)
}

// fitsInt reports whether the product of non-negative factors fits in an int.
func fitsInt(factors ...int) bool {
	n := uint64(1)
	for _, f := range factors {
		hi, lo := bits.Mul64(n, uint64(f))
		if hi != 0 || lo > math.MaxInt {
			return false
		}
		n = lo
	}
	return true
}

// Validate checks that the dense tensor fits the padded layout and that the
// layout fits in a buffer of tileBytes bytes. Tile and Untile trust their
// shape, so callers run this first.
func (s Shape) Validate(tileBytes int) error {
	if s.N <= 0 || s.C <= 0 || s.H <= 0 || s.W <= 0 {
		return fmt.Errorf("%w: %v: empty dimension", ErrShape, s)
	}
	if !fitsInt(s.N, s.C, s.H, s.W, ElemSize) {
		return fmt.Errorf("%w: %v: dense size overflows", ErrShape, s)
	}
	if !fitsInt(s.N, s.C, max(s.P, 0)) {
		return fmt.Errorf("%w: %v: tile size overflows", ErrShape, s)
	}

	switch {
	case s.R < ElemSize || s.P < s.R:
		return fmt.Errorf("%w: %v: row pitch must hold an element and fit in the plane", ErrShape, s)
	case s.R%ElemSize != 0:
		return fmt.Errorf("%w: %v: row pitch is not a whole number of elements", ErrShape, s)
	case s.P%s.R != 0:
		return fmt.Errorf("%w: %v: plane is not a whole number of rows", ErrShape, s)
	case s.W > s.NewW():
		return fmt.Errorf("%w: %v: width %d exceeds %d elements per row", ErrShape, s, s.W, s.NewW())
	case s.H > s.NewH():
		return fmt.Errorf("%w: %v: height %d exceeds %d rows per plane", ErrShape, s, s.H, s.NewH())
	case s.TileSize() > tileBytes:
		return fmt.Errorf("%w: %v: needs %d bytes, tile has %d", ErrShape, s, s.TileSize(), tileBytes)
	}
	return nil
}

// Tile copies the dense tensor src into the tile buffer dst. For each (n, c)
// it writes H rows of W elements at the start of each tile row; everything
// else in dst, the padding, is left as it was. Callers that need zero padding
// clear dst first.
func Tile(dst, src []byte, s Shape) {
	stride := s.W * ElemSize
	pitch := s.NewW() * ElemSize
	dplane := s.H * stride
	tplane := s.NewH() * pitch

	for nc := 0; nc < s.N*s.C; nc++ {
		d := dst[nc*tplane : (nc+1)*tplane]
		p := src[nc*dplane : (nc+1)*dplane]
		for h := 0; h < s.H; h++ {
			copy(d[h*pitch:h*pitch+stride], p[h*stride:(h+1)*stride])
		}
	}
}

// Untile zeroes the first DenseSize bytes of dst and then copies the leading
// H x W corner of every tile plane in src back into it.
func Untile(dst, src []byte, s Shape) {
	stride := s.W * ElemSize
	pitch := s.NewW() * ElemSize
	dplane := s.H * stride
	tplane := s.NewH() * pitch

	clear(dst[:s.DenseSize()])

	for nc := 0; nc < s.N*s.C; nc++ {
		d := dst[nc*dplane : (nc+1)*dplane]
		p := src[nc*tplane : (nc+1)*tplane]
		for h := 0; h < s.H; h++ {
			copy(d[h*stride:(h+1)*stride], p[h*pitch:h*pitch+stride])
		}
	}
}
