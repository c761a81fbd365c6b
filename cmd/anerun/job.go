package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/23skdu/longbow-ane/internal/ane"
	"github.com/23skdu/longbow-ane/internal/tile"
)

// Engine is the part of *ane.NN the command drives.
type Engine interface {
	InputCount() int
	OutputCount() int
	DenseSrcSize(p ane.Port) int
	DenseDstSize(p ane.Port) int
	TiledSend(src []byte, p ane.Port) error
	TiledRead(dst []byte, p ane.Port) error
	Exec() error
}

// runJob sends every input, runs the job and reads every output back. The
// caller must hold exclusive use of e.
func runJob(e Engine, inputs [][]byte) ([][]byte, error) {
	if len(inputs) != e.InputCount() {
		return nil, fmt.Errorf("model takes %d inputs, got %d", e.InputCount(), len(inputs))
	}
	for i, in := range inputs {
		p := ane.Port(i)
		if want := e.DenseSrcSize(p); len(in) != want {
			return nil, fmt.Errorf("input %d is %d bytes, want %d", i, len(in), want)
		}
		if err := e.TiledSend(in, p); err != nil {
			return nil, fmt.Errorf("send input %d: %w", i, err)
		}
	}

	if err := e.Exec(); err != nil {
		return nil, err
	}

	outputs := make([][]byte, e.OutputCount())
	for i := range outputs {
		p := ane.Port(i)
		outputs[i] = make([]byte, e.DenseDstSize(p))
		if err := e.TiledRead(outputs[i], p); err != nil {
			return nil, fmt.Errorf("read output %d: %w", i, err)
		}
	}
	return outputs, nil
}

// readInput loads a dense tensor file. Float32 files are narrowed to fp16.
func readInput(path string, f32 bool) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !f32 {
		return raw, nil
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%s: %d bytes is not a whole number of float32s", path, len(raw))
	}
	vals := make([]float32, len(raw)/4)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	out := make([]byte, len(vals)*tile.ElemSize)
	if err := tile.EncodeFloat32(out, vals); err != nil {
		return nil, err
	}
	return out, nil
}
