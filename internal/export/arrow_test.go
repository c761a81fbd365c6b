package export

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-ane/internal/tile"
)

func TestBuildRecordBatch(t *testing.T) {
	pool := memory.NewGoAllocator()
	builder := NewRecordBatchBuilder(pool)

	t.Run("Empty input", func(t *testing.T) {
		rb, err := builder.BuildRecordBatch(nil)
		assert.NoError(t, err)
		assert.Nil(t, rb)
	})

	t.Run("Valid input", func(t *testing.T) {
		shape := tile.Shape{N: 1, C: 1, H: 1, W: 2, P: 64, R: 64}
		data := make([]byte, 4)
		require.NoError(t, tile.EncodeFloat32(data, []float32{1.0, -2.0}))

		rb, err := builder.BuildRecordBatch([]Tensor{{Port: 3, Shape: shape, Data: data}})
		require.NoError(t, err)
		require.NotNil(t, rb)
		defer rb.Release()

		assert.Equal(t, int64(1), rb.NumRows())
		assert.Equal(t, int64(4), rb.NumCols())
		assert.Equal(t, "port", rb.ColumnName(0))
		assert.Equal(t, int32(3), rb.Column(0).(*array.Int32).Value(0))

		dims := rb.Column(1).(*array.FixedSizeList).ListValues().(*array.Int32)
		assert.Equal(t, []int32{1, 1, 1, 2}, dims.Int32Values())

		halves := rb.Column(2).(*array.List).ListValues().(*array.Uint16)
		assert.Equal(t, []uint16{0x3c00, 0xc000}, halves.Uint16Values())

		floats := rb.Column(3).(*array.List).ListValues().(*array.Float32)
		assert.Equal(t, []float32{1.0, -2.0}, floats.Float32Values())

		var buf bytes.Buffer
		require.NoError(t, WriteStream(&buf, rb))

		reader, err := ipc.NewReader(&buf, ipc.WithAllocator(pool))
		require.NoError(t, err)
		defer reader.Release()
		require.True(t, reader.Next())
		assert.Equal(t, int64(1), reader.Record().NumRows())
	})
}
