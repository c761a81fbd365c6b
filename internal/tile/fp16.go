package tile

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
)

// EncodeFloat32 converts src to IEEE 754 binary16 and writes the elements to
// dst in little-endian order. dst must hold len(src)*ElemSize bytes.
func EncodeFloat32(dst []byte, src []float32) error {
	if len(dst) < len(src)*ElemSize {
		return fmt.Errorf("tile: fp16 destination holds %d bytes, need %d", len(dst), len(src)*ElemSize)
	}
	for i, f := range src {
		binary.LittleEndian.PutUint16(dst[i*ElemSize:], float16.Fromfloat32(f).Bits())
	}
	return nil
}

// DecodeFloat32 reads little-endian binary16 elements from src.
func DecodeFloat32(src []byte) []float32 {
	out := make([]float32, len(src)/ElemSize)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(src[i*ElemSize:])).Float32()
	}
	return out
}

// Uint16s reinterprets little-endian element bytes as raw binary16 values.
func Uint16s(src []byte) []uint16 {
	out := make([]uint16, len(src)/ElemSize)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(src[i*ElemSize:])
	}
	return out
}
