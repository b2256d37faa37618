package selcheck

// Mapping is the resolved element-to-element correspondence between a
// store-space selection and a memory-space selection of equal element count.
//
// The pairing law is strictly positional: the i-th coordinate produced by
// the store selection's iteration order corresponds to the i-th coordinate
// produced by the memory selection's iteration order, regardless of the
// selection kinds involved. This is the only way selections of different
// shapes (a multi-dimensional hyperslab against a flat point list, a full
// extent against a strided hole pattern) can be validated against each
// other: correctness is correspondence in iteration order, not geometric
// equality.
type Mapping struct {
	count     uint64
	storeIt   CoordIterator
	memIt     CoordIterator
	storeDims []uint64
	memDims   []uint64
}

// ResolveMapping validates both selections against their spaces, checks that
// they select the same element count, and returns the positional pairing.
// Unequal counts fail with CountMismatchError.
func ResolveMapping(storeSel Selection, storeDims []uint64, memSel Selection, memDims []uint64) (*Mapping, error) {
	storeCount, err := storeSel.ElementCount(storeDims)
	if err != nil {
		return nil, err
	}
	memCount, err := memSel.ElementCount(memDims)
	if err != nil {
		return nil, err
	}
	if storeCount != memCount {
		return nil, &CountMismatchError{StoreCount: storeCount, MemoryCount: memCount}
	}

	storeIt, err := Iterate(storeSel, storeDims)
	if err != nil {
		return nil, err
	}
	memIt, err := Iterate(memSel, memDims)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		count:     storeCount,
		storeIt:   storeIt,
		memIt:     memIt,
		storeDims: storeDims,
		memDims:   memDims,
	}, nil
}

// Count returns the number of element pairs in the mapping.
func (m *Mapping) Count() uint64 { return m.count }

// ForEach walks the correspondence in iteration order, calling fn with the
// pair index and both coordinates. Coordinate slices are reused between
// calls. Iteration stops at the first error from fn, which is returned.
func (m *Mapping) ForEach(fn func(pos uint64, storeCoord, memCoord []uint64) error) error {
	m.storeIt.Reset()
	m.memIt.Reset()

	for pos := uint64(0); pos < m.count; pos++ {
		storeCoord, _ := m.storeIt.Next()
		memCoord, _ := m.memIt.Next()
		if err := fn(pos, storeCoord, memCoord); err != nil {
			return err
		}
	}
	return nil
}

// ForEachOffset is ForEach with both coordinates pre-flattened to row-major
// linear element offsets in their respective spaces. This is the form the
// reference store consumes for element-addressed I/O.
func (m *Mapping) ForEachOffset(fn func(pos, storeOff, memOff uint64) error) error {
	return m.ForEach(func(pos uint64, storeCoord, memCoord []uint64) error {
		return fn(pos, LinearOffset(storeCoord, m.storeDims), LinearOffset(memCoord, m.memDims))
	})
}
