package selcheck

import "fmt"

// FirstWorker is the designated worker for single-worker roles: scenarios
// where exactly one group member performs an operation (full-extent writes,
// dataset seeding) while its peers issue structurally identical empty calls.
const FirstWorker = 0

// Designated reports whether worker holds the given role. Scenarios use it
// to branch per-worker logic without comparing raw ids inline.
func Designated(worker, role int) bool { return worker == role }

// RowSlab returns the hyperslab assigning worker its single row of the
// leading dimension and the full extent of every trailing dimension. The
// combined slabs of all workers tile the leading dimension exactly; this is
// the one-row-per-worker partitioning used throughout the scenario
// catalogue.
func RowSlab(worker, numWorkers int, dims []uint64) (*HyperslabSelection, error) {
	if worker < 0 || worker >= numWorkers {
		return nil, fmt.Errorf("worker %d out of range for group of %d", worker, numWorkers)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("row partition needs at least one dimension")
	}
	if dims[0] != uint64(numWorkers) {
		return nil, fmt.Errorf("leading extent %d does not match group size %d", dims[0], numWorkers)
	}

	rank := len(dims)
	sel := &HyperslabSelection{
		Start:  make([]uint64, rank),
		Stride: make([]uint64, rank),
		Count:  make([]uint64, rank),
		Block:  make([]uint64, rank),
	}
	for d := 0; d < rank; d++ {
		if d == 0 {
			sel.Start[d] = uint64(worker)
			sel.Block[d] = 1
		} else {
			sel.Start[d] = 0
			sel.Block[d] = dims[d]
		}
		sel.Stride[d] = 1
		sel.Count[d] = 1
	}
	return sel, nil
}

// ZeroRowSlab returns the zero-count slab a worker uses to participate in a
// collective transfer while selecting zero rows: same shape as RowSlab but
// with every count and block set to zero, so it selects no elements and is
// still a valid selection.
func ZeroRowSlab(worker int, dims []uint64) *HyperslabSelection {
	rank := len(dims)
	sel := &HyperslabSelection{
		Start:  make([]uint64, rank),
		Stride: make([]uint64, rank),
		Count:  make([]uint64, rank),
		Block:  make([]uint64, rank),
	}
	for d := 0; d < rank; d++ {
		if d == 0 {
			sel.Start[d] = uint64(worker)
		}
		sel.Stride[d] = 1
	}
	return sel
}

// RowPoints returns the explicit point list covering worker's row in
// row-major order: the same coordinates RowSlab selects, materialized. Used
// by scenarios proving that point and hyperslab selections of the same
// region transfer identical values.
func RowPoints(worker, numWorkers int, dims []uint64) (*PointSelection, error) {
	slab, err := RowSlab(worker, numWorkers, dims)
	if err != nil {
		return nil, err
	}
	it, err := Iterate(slab, dims)
	if err != nil {
		return nil, err
	}

	var points [][]uint64
	for coord, ok := it.Next(); ok; coord, ok = it.Next() {
		p := make([]uint64, len(coord))
		copy(p, coord)
		points = append(points, p)
	}
	return &PointSelection{Points: points}, nil
}

// EvenPoints returns the point list selecting the even offsets 0, 2, 4, ...
// of a flat space of extent 2n. It addresses the populated positions of a
// hole buffer (real data at even offsets, sentinel at odd ones).
func EvenPoints(n uint64) *PointSelection {
	points := make([][]uint64, n)
	for i := uint64(0); i < n; i++ {
		points[i] = []uint64{2 * i}
	}
	return &PointSelection{Points: points}
}

// EvenStrideSlab returns the stride-2 hyperslab equivalent of EvenPoints:
// n single-element blocks at offsets 0, 2, 4, ... of a flat space.
func EvenStrideSlab(n uint64) *HyperslabSelection {
	return &HyperslabSelection{
		Start:  []uint64{0},
		Stride: []uint64{2},
		Count:  []uint64{n},
		Block:  []uint64{1},
	}
}
