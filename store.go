package selcheck

import "encoding/binary"

// ElementType identifies the fixed-width integer element type of a dataset.
type ElementType uint8

// Supported element types.
const (
	Int32 ElementType = iota
	Int64
)

// Size returns the element size in bytes.
func (t ElementType) Size() uint64 {
	switch t {
	case Int64:
		return 8
	default:
		return 4
	}
}

// String returns the element type name.
func (t ElementType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// Store is the storage collaborator: a persistent container of named, typed,
// fixed-shape datasets. All Store and Dataset operations are collective:
// every worker of the group must call them in the same relative order, a
// worker with nothing to transfer included (it participates with a None or
// zero-count selection).
type Store interface {
	// CreateDataset creates a named dataset of the given extent and element
	// type, zero-filled.
	CreateDataset(name string, dims []uint64, elem ElementType) (Dataset, error)

	// OpenDataset opens an existing dataset by name.
	OpenDataset(name string) (Dataset, error)

	// Close releases the store. Data written before Close must be observable
	// by a subsequent open.
	Close() error
}

// Dataset is a handle to one named array in a Store.
type Dataset interface {
	// Name returns the dataset name.
	Name() string

	// Dims returns the dataset extent.
	Dims() []uint64

	// ElementType returns the element type.
	ElementType() ElementType

	// Write transfers buffer elements into the store following the
	// positional correspondence between storeSel (over the dataset extent)
	// and memSel (over a flat memory space of extent memDims). buf holds
	// the memory space's elements in wire form, row-major.
	Write(storeSel Selection, memSel Selection, memDims []uint64, buf []byte) error

	// Read is the inverse transfer: store elements land at their
	// corresponding memory offsets in buf. Unselected buffer positions are
	// left untouched.
	Read(storeSel Selection, memSel Selection, memDims []uint64, buf []byte) error

	// Close releases the handle. Closing a handle does not close the store.
	Close() error
}

// StoreFactory opens the backing store for one worker. create is true for
// the first open of a scenario run (the store is truncated and initialized)
// and false for reopens. Factories are per-worker: each worker holds its own
// independently opened handle to the same logical store.
type StoreFactory func(create bool) (Store, error)

// wire is the store byte order. Little-endian, as the reference store's
// payloads are read back on the same machine that wrote them.
var wire = binary.LittleEndian

// Int32Bytes converts values to wire form.
func Int32Bytes(vals []int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		wire.PutUint32(buf[4*i:], uint32(v))
	}
	return buf
}

// BytesInt32 converts a wire-form buffer back to values. The buffer length
// must be a multiple of four.
func BytesInt32(buf []byte) []int32 {
	vals := make([]int32, len(buf)/4)
	for i := range vals {
		vals[i] = int32(wire.Uint32(buf[4*i:]))
	}
	return vals
}

// FillInt32 builds an n-element wire-form buffer with values from f.
func FillInt32(n uint64, f func(pos uint64) int32) []byte {
	buf := make([]byte, 4*n)
	for i := uint64(0); i < n; i++ {
		wire.PutUint32(buf[4*i:], uint32(f(i)))
	}
	return buf
}

// HoleInt32 builds a 2n-element wire-form buffer holding real values at even
// positions and the zero sentinel at odd positions. Transfers address the
// even positions through a stride-2 hyperslab or an even-offset point list;
// the odd "holes" prove the mapping touches only intended positions.
func HoleInt32(n uint64, f func(pos uint64) int32) []byte {
	buf := make([]byte, 8*n)
	for i := uint64(0); i < 2*n; i++ {
		if i%2 == 0 {
			wire.PutUint32(buf[4*i:], uint32(f(i/2)))
		}
	}
	return buf
}
