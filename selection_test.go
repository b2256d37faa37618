package selcheck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectCoords drains an iterator, copying each coordinate.
func collectCoords(t *testing.T, sel Selection, dims []uint64) [][]uint64 {
	t.Helper()
	it, err := Iterate(sel, dims)
	require.NoError(t, err)

	var out [][]uint64
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		cp := make([]uint64, len(c))
		copy(cp, c)
		out = append(out, cp)
	}
	return out
}

func TestAllSelection(t *testing.T) {
	dims := []uint64{2, 3}

	n, err := All.ElementCount(dims)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)

	coords := collectCoords(t, All, dims)
	require.Len(t, coords, 6)
	assert.Equal(t, []uint64{0, 0}, coords[0])
	// Last dimension varies fastest.
	assert.Equal(t, []uint64{0, 2}, coords[2])
	assert.Equal(t, []uint64{1, 0}, coords[3])
	assert.Equal(t, []uint64{1, 2}, coords[5])
}

func TestAllSelectionEmptyExtent(t *testing.T) {
	n, err := All.ElementCount([]uint64{4, 0, 2})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, collectCoords(t, All, []uint64{4, 0, 2}))
}

func TestNoneSelection(t *testing.T) {
	dims := []uint64{5, 5}

	n, err := None.ElementCount(dims)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, collectCoords(t, None, dims))
}

func TestHyperslabValidate(t *testing.T) {
	dims := []uint64{8, 8}

	tests := []struct {
		name    string
		sel     *HyperslabSelection
		wantErr bool
	}{
		{
			name: "basic block",
			sel: &HyperslabSelection{
				Start:  []uint64{0, 0},
				Stride: []uint64{1, 1},
				Count:  []uint64{2, 2},
				Block:  []uint64{1, 1},
			},
		},
		{
			name: "nil stride and block default to ones",
			sel: &HyperslabSelection{
				Start: []uint64{6, 6},
				Count: []uint64{2, 2},
			},
		},
		{
			name: "zero count is a valid empty selection",
			sel: &HyperslabSelection{
				Start:  []uint64{0, 0},
				Stride: []uint64{1, 1},
				Count:  []uint64{0, 0},
				Block:  []uint64{0, 0},
			},
		},
		{
			name: "zero count skips the bounds check",
			sel: &HyperslabSelection{
				Start: []uint64{100, 100},
				Count: []uint64{0, 0},
			},
		},
		{
			name: "last block element exactly at the edge",
			sel: &HyperslabSelection{
				Start:  []uint64{0, 0},
				Stride: []uint64{3, 3},
				Count:  []uint64{2, 2},
				Block:  []uint64{2, 2},
			},
		},
		{
			name: "zero stride",
			sel: &HyperslabSelection{
				Start:  []uint64{0, 0},
				Stride: []uint64{0, 1},
				Count:  []uint64{1, 1},
			},
			wantErr: true,
		},
		{
			name: "block reaches past the extent",
			sel: &HyperslabSelection{
				Start: []uint64{7, 0},
				Count: []uint64{1, 1},
				Block: []uint64{2, 1},
			},
			wantErr: true,
		},
		{
			name: "start rank mismatch",
			sel: &HyperslabSelection{
				Start: []uint64{0},
				Count: []uint64{1, 1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate(dims)
			if tt.wantErr {
				var selErr *InvalidSelectionError
				require.Error(t, err)
				require.ErrorAs(t, err, &selErr)
				assert.Equal(t, KindHyperslab, selErr.Kind)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHyperslabElementCount(t *testing.T) {
	sel := &HyperslabSelection{
		Start:  []uint64{0, 1},
		Stride: []uint64{4, 3},
		Count:  []uint64{2, 2},
		Block:  []uint64{2, 2},
	}

	n, err := sel.ElementCount([]uint64{8, 8})
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n) // (2*2) * (2*2)
}

func TestHyperslabIterationOrder(t *testing.T) {
	sel := &HyperslabSelection{
		Start:  []uint64{0, 1},
		Stride: []uint64{2, 2},
		Count:  []uint64{2, 2},
	}

	coords := collectCoords(t, sel, []uint64{4, 5})
	want := [][]uint64{{0, 1}, {0, 3}, {2, 1}, {2, 3}}
	assert.Equal(t, want, coords)
}

func TestHyperslabBlockIteration(t *testing.T) {
	sel := &HyperslabSelection{
		Start:  []uint64{0},
		Stride: []uint64{3},
		Count:  []uint64{2},
		Block:  []uint64{2},
	}

	coords := collectCoords(t, sel, []uint64{8})
	want := [][]uint64{{0}, {1}, {3}, {4}}
	assert.Equal(t, want, coords)
}

func TestHyperslabZeroCountIteratesNothing(t *testing.T) {
	sel := &HyperslabSelection{
		Start: []uint64{0, 0},
		Count: []uint64{0, 4},
	}
	assert.Empty(t, collectCoords(t, sel, []uint64{4, 4}))
}

func TestIteratorReset(t *testing.T) {
	sel := &HyperslabSelection{
		Start:  []uint64{1, 0},
		Stride: []uint64{2, 1},
		Count:  []uint64{2, 3},
	}
	dims := []uint64{4, 3}

	it, err := Iterate(sel, dims)
	require.NoError(t, err)

	var first [][]uint64
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		cp := make([]uint64, len(c))
		copy(cp, c)
		first = append(first, cp)
	}

	it.Reset()
	var second [][]uint64
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		cp := make([]uint64, len(c))
		copy(cp, c)
		second = append(second, cp)
	}

	assert.Equal(t, first, second)
}

func TestPointSelection(t *testing.T) {
	sel := &PointSelection{Points: [][]uint64{{2, 1}, {0, 0}, {1, 3}}}
	dims := []uint64{4, 4}

	n, err := sel.ElementCount(dims)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	// List order is iteration order, not row-major order.
	coords := collectCoords(t, sel, dims)
	assert.Equal(t, [][]uint64{{2, 1}, {0, 0}, {1, 3}}, coords)
}

func TestPointSelectionValidate(t *testing.T) {
	dims := []uint64{4, 4}

	var selErr *InvalidSelectionError

	outOfBounds := &PointSelection{Points: [][]uint64{{0, 0}, {0, 4}}}
	err := outOfBounds.Validate(dims)
	require.Error(t, err)
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, KindPoints, selErr.Kind)
	assert.Equal(t, 1, selErr.Dim)

	rankMismatch := &PointSelection{Points: [][]uint64{{1}}}
	require.Error(t, rankMismatch.Validate(dims))

	empty := &PointSelection{}
	require.NoError(t, empty.Validate(dims))
	n, err := empty.ElementCount(dims)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIterateRejectsInvalidSelection(t *testing.T) {
	sel := &HyperslabSelection{
		Start: []uint64{10},
		Count: []uint64{1},
	}
	_, err := Iterate(sel, []uint64{4})
	require.Error(t, err)

	var selErr *InvalidSelectionError
	assert.True(t, errors.As(err, &selErr))
}

func TestLinearOffset(t *testing.T) {
	dims := []uint64{3, 4, 5}

	assert.Equal(t, uint64(0), LinearOffset([]uint64{0, 0, 0}, dims))
	assert.Equal(t, uint64(1), LinearOffset([]uint64{0, 0, 1}, dims))
	assert.Equal(t, uint64(5), LinearOffset([]uint64{0, 1, 0}, dims))
	assert.Equal(t, uint64(20), LinearOffset([]uint64{1, 0, 0}, dims))
	assert.Equal(t, uint64(59), LinearOffset([]uint64{2, 3, 4}, dims))
}

func TestSelectionKindString(t *testing.T) {
	assert.Equal(t, "all", KindAll.String())
	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "hyperslab", KindHyperslab.String())
	assert.Equal(t, "points", KindPoints.String())
}
