// Package export turns output tensors into Arrow record batches.
package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-ane/internal/tile"
)

// Tensor is one dense output read back from the engine.
type Tensor struct {
	Port  int
	Shape tile.Shape
	Data  []byte // little-endian fp16, Shape.DenseSize() bytes
}

// Schema is the layout of every batch built here: one row per tensor.
var Schema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "port", Type: arrow.PrimitiveTypes.Int32},
		{Name: "shape", Type: arrow.FixedSizeListOf(4, arrow.PrimitiveTypes.Int32)},
		{Name: "fp16", Type: arrow.ListOf(arrow.PrimitiveTypes.Uint16)},
		{Name: "fp32", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
	},
	nil,
)

// RecordBatchBuilder creates Arrow RecordBatches from output tensors.
type RecordBatchBuilder struct {
	mem memory.Allocator
}

// NewRecordBatchBuilder creates a new builder.
func NewRecordBatchBuilder(mem memory.Allocator) *RecordBatchBuilder {
	return &RecordBatchBuilder{mem: mem}
}

// BuildRecordBatch returns a batch with one row per tensor, or nil for no
// tensors. The fp32 column is the fp16 data widened for consumers that do
// not read half floats.
func (b *RecordBatchBuilder) BuildRecordBatch(tensors []Tensor) (arrow.RecordBatch, error) {
	if len(tensors) == 0 {
		return nil, nil
	}

	portBuilder := array.NewInt32Builder(b.mem)
	defer portBuilder.Release()

	shapeBuilder := array.NewFixedSizeListBuilder(b.mem, 4, arrow.PrimitiveTypes.Int32)
	defer shapeBuilder.Release()
	dims := shapeBuilder.ValueBuilder().(*array.Int32Builder)

	halfBuilder := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Uint16)
	defer halfBuilder.Release()
	halves := halfBuilder.ValueBuilder().(*array.Uint16Builder)

	floatBuilder := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float32)
	defer floatBuilder.Release()
	floats := floatBuilder.ValueBuilder().(*array.Float32Builder)

	for _, t := range tensors {
		data := t.Data[:t.Shape.DenseSize()]

		portBuilder.Append(int32(t.Port))

		shapeBuilder.Append(true)
		dims.AppendValues([]int32{int32(t.Shape.N), int32(t.Shape.C), int32(t.Shape.H), int32(t.Shape.W)}, nil)

		halfBuilder.Append(true)
		halves.AppendValues(tile.Uint16s(data), nil)

		floatBuilder.Append(true)
		floats.AppendValues(tile.DecodeFloat32(data), nil)
	}

	cols := []arrow.Array{
		portBuilder.NewArray(),
		shapeBuilder.NewArray(),
		halfBuilder.NewArray(),
		floatBuilder.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecordBatch(Schema, cols, int64(len(tensors))), nil
}

// WriteStream writes rec to w as an Arrow IPC stream.
func WriteStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
