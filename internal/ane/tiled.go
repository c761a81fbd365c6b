package ane

import (
	"fmt"

	"github.com/23skdu/longbow-ane/internal/tile"
)

// TiledSend lays out the dense tensor src in the padded tile format of input
// port p and sends it. Padding is zero.
func (nn *NN) TiledSend(src []byte, p Port) error {
	c, slot, err := nn.resolve(&nn.src, p)
	if err != nil {
		return err
	}
	shape := nn.model.Slots[slot].Shape
	if err := shape.Validate(int(c.size)); err != nil {
		return err
	}
	if len(src) < shape.DenseSize() {
		return fmt.Errorf("%w: have %d bytes, %v needs %d", ErrShortBuffer, len(src), shape, shape.DenseSize())
	}

	buf := nn.scratch.get(int(c.size), true)
	defer nn.scratch.put(buf)

	tile.Tile(*buf, src, shape)
	return nn.send(c, *buf)
}

// TiledRead reads the tile of output port p and writes it to dst as a dense
// tensor. dst is zeroed before the copy.
func (nn *NN) TiledRead(dst []byte, p Port) error {
	c, slot, err := nn.resolve(&nn.dst, p)
	if err != nil {
		return err
	}
	shape := nn.model.Slots[slot].Shape
	if err := shape.Validate(int(c.size)); err != nil {
		return err
	}
	if len(dst) < shape.DenseSize() {
		return fmt.Errorf("%w: have %d bytes, %v needs %d", ErrShortBuffer, len(dst), shape, shape.DenseSize())
	}

	// Untile clears dst itself, so the scratch buffer is not zeroed.
	buf := nn.scratch.get(int(c.size), false)
	defer nn.scratch.put(buf)

	if err := nn.read(c, *buf); err != nil {
		return err
	}
	tile.Untile(dst, *buf, shape)
	return nil
}

// DenseSrcSize returns the dense tensor size in bytes for input port p, or 0.
func (nn *NN) DenseSrcSize(p Port) int {
	_, slot, err := nn.resolve(&nn.src, p)
	if err != nil {
		return 0
	}
	return nn.model.Slots[slot].Shape.DenseSize()
}

// DenseDstSize returns the dense tensor size in bytes for output port p, or 0.
func (nn *NN) DenseDstSize(p Port) int {
	_, slot, err := nn.resolve(&nn.dst, p)
	if err != nil {
		return 0
	}
	return nn.model.Slots[slot].Shape.DenseSize()
}
