package selcheck

import (
	"github.com/scigolib/selcheck/internal/utils"
)

// reopenAndVerify closes and reopens the store to force written data through
// to persistent state, then verifies the named dataset with a full-extent
// read on every worker.
func reopenAndVerify(r *Run, dset string, want func(pos uint64) (int32, bool)) error {
	if err := r.Reopen(); err != nil {
		return err
	}
	ds, err := r.Store().OpenDataset(dset)
	if err != nil {
		return atStage(StageReopen, err)
	}
	defer func() { _ = ds.Close() }()
	return r.VerifyFullRead(ds, want)
}

// scenarioWriteDataVerification round-trips the three basic write shapes
// through one shared dataset: a designated-worker full-extent write, a
// one-row-per-worker hyperslab write, and a one-row-per-worker point write.
func scenarioWriteDataVerification() Scenario {
	const name = "dataset_write_data_verification"
	const dset = "write_data_verification_dset"

	return Scenario{Name: name, Parts: []Part{
		{Name: "full_extent_write", Run: func(r *Run) error {
			w := r.Coord.WorkerID()
			dims := r.Dims(name, 2)
			total, err := utils.Product(dims)
			if err != nil {
				return atStage(StageFill, err)
			}

			ds, err := r.Store().CreateDataset(dset, dims, Int32)
			if err != nil {
				return atStage(StageSetup, err)
			}

			err = r.Independent("full_extent_write", func() error {
				if !Designated(w, FirstWorker) {
					return nil
				}
				buf := FillInt32(total, func(pos uint64) int32 { return int32(pos) })
				return ds.Write(All, All, dims, buf)
			})
			if err != nil {
				return atStage(StageWrite, err)
			}
			if err := ds.Close(); err != nil {
				return atStage(StageWrite, err)
			}

			return reopenAndVerify(r, dset, func(pos uint64) (int32, bool) {
				return int32(pos), true
			})
		}},
		{Name: "row_hyperslab_write", Run: func(r *Run) error {
			w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
			dims := r.Dims(name, 2)
			rowN, err := rowElems(dims)
			if err != nil {
				return atStage(StageFill, err)
			}

			ds, err := r.Store().OpenDataset(dset)
			if err != nil {
				return atStage(StageSetup, err)
			}
			slab, err := RowSlab(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}

			buf := FillInt32(rowN, func(uint64) int32 { return int32(w) })
			if err := ds.Write(slab, All, []uint64{rowN}, buf); err != nil {
				return atStage(StageWrite, err)
			}
			if err := ds.Close(); err != nil {
				return atStage(StageWrite, err)
			}

			return reopenAndVerify(r, dset, func(pos uint64) (int32, bool) {
				return int32(pos / rowN), true
			})
		}},
		{Name: "row_points_write", Run: func(r *Run) error {
			w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
			dims := r.Dims(name, 2)
			rowN, err := rowElems(dims)
			if err != nil {
				return atStage(StageFill, err)
			}

			ds, err := r.Store().OpenDataset(dset)
			if err != nil {
				return atStage(StageSetup, err)
			}
			pts, err := RowPoints(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}

			buf := FillInt32(rowN, func(uint64) int32 { return int32(n - w) })
			if err := ds.Write(pts, All, []uint64{rowN}, buf); err != nil {
				return atStage(StageWrite, err)
			}
			if err := ds.Close(); err != nil {
				return atStage(StageWrite, err)
			}

			return reopenAndVerify(r, dset, func(pos uint64) (int32, bool) {
				row := int(pos / rowN)
				return int32(n - row), true
			})
		}},
	}}
}

// scenarioOneRankZeroSelWrite: the designated worker participates in the
// collective write with a zero-count hyperslab on both sides; its peers each
// write their row. The designated worker's row must stay zero-filled.
func scenarioOneRankZeroSelWrite() Scenario {
	const name = "one_rank_0_sel_write_test"
	const dset = "one_rank_0_sel_write_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		ds, err := r.Store().CreateDataset(dset, dims, Int32)
		if err != nil {
			return atStage(StageSetup, err)
		}

		var storeSel, memSel Selection
		if Designated(w, FirstWorker) {
			storeSel = ZeroRowSlab(w, dims)
			memSel = zeroSlab()
		} else {
			storeSel, err = RowSlab(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}
			memSel = All
		}

		buf := FillInt32(rowN, func(uint64) int32 { return int32(w) })
		if err := ds.Write(storeSel, memSel, []uint64{rowN}, buf); err != nil {
			return atStage(StageWrite, err)
		}
		if err := ds.Close(); err != nil {
			return atStage(StageWrite, err)
		}

		return reopenAndVerify(r, dset, func(pos uint64) (int32, bool) {
			return int32(pos / rowN), true // Row 0 stayed zero-filled.
		})
	}}}}
}

// scenarioOneRankNoneSelWrite: like the zero-count case, but the designated
// worker participates with None selections and an empty memory space.
func scenarioOneRankNoneSelWrite() Scenario {
	const name = "one_rank_none_sel_write_test"
	const dset = "one_rank_none_sel_write_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		ds, err := r.Store().CreateDataset(dset, dims, Int32)
		if err != nil {
			return atStage(StageSetup, err)
		}

		var storeSel, memSel Selection
		var memDims []uint64
		var buf []byte
		if Designated(w, FirstWorker) {
			storeSel, memSel, memDims = None, None, []uint64{0}
		} else {
			storeSel, err = RowSlab(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}
			memSel, memDims = All, []uint64{rowN}
			buf = FillInt32(rowN, func(uint64) int32 { return int32(w) })
		}

		if err := ds.Write(storeSel, memSel, memDims, buf); err != nil {
			return atStage(StageWrite, err)
		}
		if err := ds.Close(); err != nil {
			return atStage(StageWrite, err)
		}

		return reopenAndVerify(r, dset, func(pos uint64) (int32, bool) {
			return int32(pos / rowN), true
		})
	}}}}
}

// scenarioOneRankAllSelWrite: the designated worker writes the entire extent
// in one collective call while every peer participates with None.
func scenarioOneRankAllSelWrite() Scenario {
	const name = "one_rank_all_sel_write_test"
	const dset = "one_rank_all_sel_write_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w := r.Coord.WorkerID()
		dims := r.Dims(name, 2)
		total, err := utils.Product(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		ds, err := r.Store().CreateDataset(dset, dims, Int32)
		if err != nil {
			return atStage(StageSetup, err)
		}

		var storeSel, memSel Selection
		var memDims []uint64
		var buf []byte
		if Designated(w, FirstWorker) {
			storeSel, memSel, memDims = All, All, dims
			buf = FillInt32(total, func(pos uint64) int32 { return int32(pos) })
		} else {
			storeSel, memSel, memDims = None, None, []uint64{0}
		}

		if err := ds.Write(storeSel, memSel, memDims, buf); err != nil {
			return atStage(StageWrite, err)
		}
		if err := ds.Close(); err != nil {
			return atStage(StageWrite, err)
		}

		return reopenAndVerify(r, dset, func(pos uint64) (int32, bool) {
			return int32(pos), true
		})
	}}}}
}

// pairWriteScenario builds the write scenario for one store/memory selection
// pairing. Per-worker pairings write each worker's id into its row; solo
// pairings have the designated worker write the element's own position.
func pairWriteScenario(pc pairCase) Scenario {
	name := pc.name + "_write_test"
	dset := pc.name + "_write_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		ds, err := r.Store().CreateDataset(dset, dims, Int32)
		if err != nil {
			return atStage(StageSetup, err)
		}

		var storeSel, memSel Selection
		var memDims []uint64
		var buf []byte
		switch {
		case pc.solo && Designated(w, FirstWorker):
			total, perr := utils.Product(dims)
			if perr != nil {
				return atStage(StageFill, perr)
			}
			storeSel, err = pc.storeSel(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}
			memSel, memDims = pc.memSel(total)
			buf = HoleInt32(total, func(pos uint64) int32 { return int32(pos) })
		case pc.solo:
			storeSel, memSel, memDims = None, None, []uint64{0}
		default:
			storeSel, err = pc.storeSel(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}
			memSel, memDims = pc.memSel(rowN)
			if pc.hole {
				buf = HoleInt32(rowN, func(uint64) int32 { return int32(w) })
			} else {
				buf = FillInt32(rowN, func(uint64) int32 { return int32(w) })
			}
		}

		if err := ds.Write(storeSel, memSel, memDims, buf); err != nil {
			return atStage(StageWrite, err)
		}
		if err := ds.Close(); err != nil {
			return atStage(StageWrite, err)
		}

		want := func(pos uint64) (int32, bool) { return int32(pos / rowN), true }
		if pc.solo {
			want = func(pos uint64) (int32, bool) { return int32(pos), true }
		}
		return reopenAndVerify(r, dset, want)
	}}}}
}

// scenarioIndependentWrite: workers write two datasets with independent
// transfers in opposite orders (even workers first dataset one, odd workers
// first dataset two), proving independent data transfers need no group-wide
// ordering.
func scenarioIndependentWrite() Scenario {
	const name = "independent_dataset_write_test"
	dsets := []string{"independent_write_dset1", "independent_write_dset2"}

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		d1, err := r.Store().CreateDataset(dsets[0], dims, Int32)
		if err != nil {
			return atStage(StageSetup, err)
		}
		d2, err := r.Store().CreateDataset(dsets[1], dims, Int32)
		if err != nil {
			return atStage(StageSetup, err)
		}

		slab, err := RowSlab(w, n, dims)
		if err != nil {
			return atStage(StageFill, err)
		}
		buf := FillInt32(rowN, func(uint64) int32 { return int32(w) })

		err = r.Independent("ordered_dataset_writes", func() error {
			first, second := d1, d2
			if w%2 == 1 {
				first, second = d2, d1
			}
			if werr := first.Write(slab, All, []uint64{rowN}, buf); werr != nil {
				return werr
			}
			return second.Write(slab, All, []uint64{rowN}, buf)
		})
		if err != nil {
			return atStage(StageWrite, err)
		}
		if err := d1.Close(); err != nil {
			return atStage(StageWrite, err)
		}
		if err := d2.Close(); err != nil {
			return atStage(StageWrite, err)
		}

		if err := r.Reopen(); err != nil {
			return err
		}
		for _, dset := range dsets {
			ds, oerr := r.Store().OpenDataset(dset)
			if oerr != nil {
				return atStage(StageReopen, oerr)
			}
			verr := r.VerifyFullRead(ds, func(pos uint64) (int32, bool) {
				return int32(pos / rowN), true
			})
			_ = ds.Close()
			if verr != nil {
				return verr
			}
		}
		return nil
	}}}}
}
