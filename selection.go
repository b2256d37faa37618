// Package selcheck implements a selection-mapping verification engine for
// parallel dataset I/O. Given an N-dimensional dataset partitioned across a
// fixed group of workers, it generates deterministic fill data, computes the
// positional correspondence between a store-space selection and a
// memory-space selection, drives a write-then-read round trip through a
// storage collaborator, and verifies the observed bytes against the expected
// mapping.
package selcheck

import (
	"fmt"

	"github.com/scigolib/selcheck/internal/utils"
)

// SelectionKind identifies the variant of a Selection.
type SelectionKind int

const (
	// KindAll selects every coordinate in the space's extent.
	KindAll SelectionKind = iota

	// KindNone selects nothing. A None selection is a valid participant in
	// collective transfers; it contributes zero elements.
	KindNone

	// KindHyperslab selects a regular, strided, block-structured region.
	KindHyperslab

	// KindPoints selects an explicit, ordered coordinate list.
	KindPoints
)

// String returns the selection kind name.
func (k SelectionKind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindNone:
		return "none"
	case KindHyperslab:
		return "hyperslab"
	case KindPoints:
		return "points"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Selection describes a subset of coordinates in an N-dimensional space.
// The variant set is closed: All, None, Hyperslab and Points. A selection is
// interpreted against a dimension vector at use time; the same value can be
// applied to a store space and to a memory space.
type Selection interface {
	// Kind reports the selection variant.
	Kind() SelectionKind

	// Validate checks the selection against the given extent.
	Validate(dims []uint64) error

	// ElementCount computes the number of selected elements without
	// enumerating coordinates (except for point lists, whose length is
	// their count).
	ElementCount(dims []uint64) (uint64, error)

	// iterator returns a restartable row-major coordinate iterator.
	// The variant set is sealed by this unexported method.
	iterator(dims []uint64) (CoordIterator, error)
}

// CoordIterator produces a lazy, finite, restartable sequence of coordinates
// in a fixed order: row-major (last dimension fastest-varying) for All and
// Hyperslab selections, explicit list order for point selections.
//
// The coordinate slice returned by Next is reused between calls; callers
// that retain coordinates must copy them.
type CoordIterator interface {
	// Next returns the next coordinate, or (nil, false) when exhausted.
	Next() ([]uint64, bool)

	// Reset restarts the sequence from the beginning.
	Reset()
}

// AllSelection selects the entire extent of a space.
type AllSelection struct{}

// NoneSelection selects nothing.
type NoneSelection struct{}

// All is the shared full-extent selection.
var All Selection = AllSelection{}

// None is the shared empty selection.
var None Selection = NoneSelection{}

// Kind reports KindAll.
func (AllSelection) Kind() SelectionKind { return KindAll }

// Validate always succeeds; every extent has a full selection.
func (AllSelection) Validate(dims []uint64) error { return nil }

// ElementCount returns the product of the extent.
func (AllSelection) ElementCount(dims []uint64) (uint64, error) {
	n, err := utils.Product(dims)
	if err != nil {
		return 0, &InvalidSelectionError{Kind: KindAll, Dim: -1, Reason: err.Error()}
	}
	return n, nil
}

func (AllSelection) iterator(dims []uint64) (CoordIterator, error) {
	for _, d := range dims {
		if d == 0 {
			return emptyIterator{}, nil
		}
	}
	return newGridIterator(dims), nil
}

// Kind reports KindNone.
func (NoneSelection) Kind() SelectionKind { return KindNone }

// Validate always succeeds.
func (NoneSelection) Validate(dims []uint64) error { return nil }

// ElementCount returns zero.
func (NoneSelection) ElementCount(dims []uint64) (uint64, error) { return 0, nil }

func (NoneSelection) iterator(dims []uint64) (CoordIterator, error) {
	return emptyIterator{}, nil
}

// HyperslabSelection selects count[d] blocks of size block[d] spaced
// stride[d] apart along each dimension d, starting at start[d]. The total
// number of selected elements is the product of count[d]*block[d].
//
// Nil Stride defaults to all 1s (adjacent blocks); nil Block defaults to all
// 1s (single-element blocks). A zero count or block in any dimension makes
// the selection empty; that is valid, not an error, and models a worker that
// participates in a collective transfer while selecting zero rows.
type HyperslabSelection struct {
	Start  []uint64
	Stride []uint64 // nil means all 1s
	Count  []uint64
	Block  []uint64 // nil means all 1s
}

// Kind reports KindHyperslab.
func (s *HyperslabSelection) Kind() SelectionKind { return KindHyperslab }

// withDefaults returns the stride and block vectors with nil entries filled
// in as all 1s.
func (s *HyperslabSelection) withDefaults(rank int) (stride, block []uint64) {
	stride = s.Stride
	if stride == nil {
		stride = make([]uint64, rank)
		for i := range stride {
			stride[i] = 1
		}
	}
	block = s.Block
	if block == nil {
		block = make([]uint64, rank)
		for i := range block {
			block[i] = 1
		}
	}
	return stride, block
}

// Validate checks vector ranks, strides and bounds against the extent.
// Dimensions with a zero count or block are not bounds-checked: they select
// nothing and cannot reach outside the extent.
func (s *HyperslabSelection) Validate(dims []uint64) error {
	rank := len(dims)
	if len(s.Start) != rank {
		return hyperslabErr(-1, "start rank %d != space rank %d", len(s.Start), rank)
	}
	if len(s.Count) != rank {
		return hyperslabErr(-1, "count rank %d != space rank %d", len(s.Count), rank)
	}
	if s.Stride != nil && len(s.Stride) != rank {
		return hyperslabErr(-1, "stride rank %d != space rank %d", len(s.Stride), rank)
	}
	if s.Block != nil && len(s.Block) != rank {
		return hyperslabErr(-1, "block rank %d != space rank %d", len(s.Block), rank)
	}

	stride, block := s.withDefaults(rank)
	for d := 0; d < rank; d++ {
		if stride[d] == 0 {
			return hyperslabErr(d, "stride must be > 0")
		}
		if s.Count[d] == 0 || block[d] == 0 {
			continue // Empty in this dimension, selects nothing.
		}

		// Last selected coordinate: start + (count-1)*stride + block - 1.
		span, err := utils.SafeMultiply(s.Count[d]-1, stride[d])
		if err != nil {
			return hyperslabErr(d, "stride overflow: %v", err)
		}
		last := s.Start[d] + span + block[d]
		if last > dims[d] {
			return hyperslabErr(d, "start=%d + (count-1)*stride + block = %d > extent %d",
				s.Start[d], last, dims[d])
		}
	}
	return nil
}

// ElementCount returns the product of count[d]*block[d] over all dimensions.
func (s *HyperslabSelection) ElementCount(dims []uint64) (uint64, error) {
	if err := s.Validate(dims); err != nil {
		return 0, err
	}
	_, block := s.withDefaults(len(dims))

	total := uint64(1)
	for d := range dims {
		n, err := utils.SafeMultiply(s.Count[d], block[d])
		if err != nil {
			return 0, hyperslabErr(d, "element count overflow: %v", err)
		}
		if err := utils.CheckMultiplyOverflow(total, n); err != nil {
			return 0, hyperslabErr(d, "element count overflow: %v", err)
		}
		total *= n
	}
	if err := utils.ValidateBufferSize(total, utils.MaxSelectionElements, "hyperslab selection"); err != nil {
		return 0, hyperslabErr(-1, "%v", err)
	}
	return total, nil
}

func (s *HyperslabSelection) iterator(dims []uint64) (CoordIterator, error) {
	if err := s.Validate(dims); err != nil {
		return nil, err
	}
	stride, block := s.withDefaults(len(dims))
	for d := range dims {
		if s.Count[d] == 0 || block[d] == 0 {
			return emptyIterator{}, nil
		}
	}
	return newHyperslabIterator(s.Start, stride, s.Count, block), nil
}

func hyperslabErr(dim int, format string, args ...interface{}) error {
	return &InvalidSelectionError{
		Kind:   KindHyperslab,
		Dim:    dim,
		Reason: fmt.Sprintf(format, args...),
	}
}

// PointSelection selects an explicit, ordered list of coordinates. Order is
// significant: it defines the iteration order used for positional pairing
// with the peer selection of a transfer.
type PointSelection struct {
	Points [][]uint64
}

// Kind reports KindPoints.
func (s *PointSelection) Kind() SelectionKind { return KindPoints }

// Validate checks every point's rank and bounds against the extent.
func (s *PointSelection) Validate(dims []uint64) error {
	rank := len(dims)
	for i, p := range s.Points {
		if len(p) != rank {
			return &InvalidSelectionError{
				Kind:   KindPoints,
				Dim:    -1,
				Reason: fmt.Sprintf("point %d has rank %d, space rank is %d", i, len(p), rank),
			}
		}
		for d, c := range p {
			if c >= dims[d] {
				return &InvalidSelectionError{
					Kind:   KindPoints,
					Dim:    d,
					Reason: fmt.Sprintf("point %d coordinate %d >= extent %d", i, c, dims[d]),
				}
			}
		}
	}
	return nil
}

// ElementCount returns the point list length.
func (s *PointSelection) ElementCount(dims []uint64) (uint64, error) {
	if err := s.Validate(dims); err != nil {
		return 0, err
	}
	return uint64(len(s.Points)), nil
}

func (s *PointSelection) iterator(dims []uint64) (CoordIterator, error) {
	if err := s.Validate(dims); err != nil {
		return nil, err
	}
	return &pointIterator{points: s.Points}, nil
}

// Iterate returns a restartable coordinate iterator for the selection over
// the given extent. Validation failures surface as InvalidSelectionError.
func Iterate(sel Selection, dims []uint64) (CoordIterator, error) {
	return sel.iterator(dims)
}

// LinearOffset converts an N-dimensional coordinate to its row-major linear
// element offset (last dimension varies fastest).
func LinearOffset(coord, dims []uint64) uint64 {
	offset := uint64(0)
	stride := uint64(1)
	for i := len(coord) - 1; i >= 0; i-- {
		offset += coord[i] * stride
		stride *= dims[i]
	}
	return offset
}

// emptyIterator is the zero-element sequence.
type emptyIterator struct{}

func (emptyIterator) Next() ([]uint64, bool) { return nil, false }
func (emptyIterator) Reset()                 {}

// gridIterator walks every coordinate of an extent in row-major order.
type gridIterator struct {
	dims  []uint64
	coord []uint64
	done  bool
	first bool
}

func newGridIterator(dims []uint64) *gridIterator {
	it := &gridIterator{dims: dims, coord: make([]uint64, len(dims))}
	it.Reset()
	return it
}

func (it *gridIterator) Reset() {
	for i := range it.coord {
		it.coord[i] = 0
	}
	it.done = false
	it.first = true
}

func (it *gridIterator) Next() ([]uint64, bool) {
	if it.done {
		return nil, false
	}
	if it.first {
		it.first = false
		return it.coord, true
	}
	// Odometer increment from the last dimension.
	for d := len(it.dims) - 1; d >= 0; d-- {
		it.coord[d]++
		if it.coord[d] < it.dims[d] {
			return it.coord, true
		}
		it.coord[d] = 0
	}
	it.done = true
	return nil, false
}

// hyperslabIterator walks a hyperslab in row-major order, tracking a block
// cursor and a within-block cursor per dimension.
type hyperslabIterator struct {
	start, stride, count, block []uint64

	countIdx []uint64 // current block per dimension
	blockIdx []uint64 // current element within the block
	coord    []uint64
	done     bool
	first    bool
}

func newHyperslabIterator(start, stride, count, block []uint64) *hyperslabIterator {
	rank := len(start)
	it := &hyperslabIterator{
		start:    start,
		stride:   stride,
		count:    count,
		block:    block,
		countIdx: make([]uint64, rank),
		blockIdx: make([]uint64, rank),
		coord:    make([]uint64, rank),
	}
	it.Reset()
	return it
}

func (it *hyperslabIterator) Reset() {
	for d := range it.coord {
		it.countIdx[d] = 0
		it.blockIdx[d] = 0
		it.coord[d] = it.start[d]
	}
	it.done = false
	it.first = true
}

func (it *hyperslabIterator) Next() ([]uint64, bool) {
	if it.done {
		return nil, false
	}
	if it.first {
		it.first = false
		return it.coord, true
	}
	// Advance the fastest-varying dimension; carry into slower ones.
	for d := len(it.coord) - 1; d >= 0; d-- {
		it.blockIdx[d]++
		if it.blockIdx[d] < it.block[d] {
			it.coord[d]++
			return it.coord, true
		}
		it.blockIdx[d] = 0

		it.countIdx[d]++
		if it.countIdx[d] < it.count[d] {
			it.coord[d] = it.start[d] + it.countIdx[d]*it.stride[d]
			return it.coord, true
		}
		it.countIdx[d] = 0
		it.coord[d] = it.start[d]
	}
	it.done = true
	return nil, false
}

// pointIterator yields an explicit coordinate list in its own order.
type pointIterator struct {
	points [][]uint64
	next   int
}

func (it *pointIterator) Reset() { it.next = 0 }

func (it *pointIterator) Next() ([]uint64, bool) {
	if it.next >= len(it.points) {
		return nil, false
	}
	p := it.points[it.next]
	it.next++
	return p, true
}
