package selcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElementTypeSize(t *testing.T) {
	assert.Equal(t, uint64(4), Int32.Size())
	assert.Equal(t, uint64(8), Int64.Size())
	assert.Equal(t, "int32", Int32.String())
	assert.Equal(t, "int64", Int64.String())
}

func TestInt32WireRoundTrip(t *testing.T) {
	vals := []int32{0, -1, 42, -2147483648, 2147483647}
	assert.Equal(t, vals, BytesInt32(Int32Bytes(vals)))
}

func TestFillInt32(t *testing.T) {
	buf := FillInt32(4, func(pos uint64) int32 { return int32(pos) * 3 })
	assert.Equal(t, []int32{0, 3, 6, 9}, BytesInt32(buf))
}

func TestHoleInt32(t *testing.T) {
	buf := HoleInt32(3, func(pos uint64) int32 { return int32(pos) + 10 })
	// Real values at even positions, the zero sentinel at odd ones.
	assert.Equal(t, []int32{10, 0, 11, 0, 12, 0}, BytesInt32(buf))
}
