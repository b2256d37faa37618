package selcheck

import (
	"github.com/scigolib/selcheck/internal/utils"
)

// seedDataset creates the dataset and has the designated worker fill it with
// an independent full-extent write, then reopens the store so every worker
// observes the seeded data before reading.
func seedDataset(r *Run, dset string, dims []uint64, val func(pos uint64) int32) error {
	total, err := utils.Product(dims)
	if err != nil {
		return atStage(StageFill, err)
	}

	ds, err := r.Store().CreateDataset(dset, dims, Int32)
	if err != nil {
		return atStage(StageSetup, err)
	}

	err = r.Independent("seed_write", func() error {
		if !Designated(r.Coord.WorkerID(), FirstWorker) {
			return nil
		}
		return ds.Write(All, All, dims, FillInt32(total, val))
	})
	if err != nil {
		return atStage(StageFill, err)
	}
	if err := ds.Close(); err != nil {
		return atStage(StageFill, err)
	}
	return r.Reopen()
}

// scenarioOneRankZeroSelRead: every worker reads its seeded row except the
// designated one, which participates with a zero-count hyperslab and must
// receive nothing.
func scenarioOneRankZeroSelRead() Scenario {
	const name = "one_rank_0_sel_read_test"
	const dset = "one_rank_0_sel_read_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		if err := seedDataset(r, dset, dims, func(pos uint64) int32 {
			return int32(pos / rowN)
		}); err != nil {
			return err
		}

		ds, err := r.Store().OpenDataset(dset)
		if err != nil {
			return atStage(StageSetup, err)
		}
		defer func() { _ = ds.Close() }()

		var storeSel, memSel Selection
		if Designated(w, FirstWorker) {
			storeSel, memSel = ZeroRowSlab(w, dims), zeroSlab()
		} else {
			storeSel, err = RowSlab(w, n, dims)
			if err != nil {
				return atStage(StageFill, err)
			}
			memSel = All
		}

		buf := make([]byte, 4*rowN)
		if err := ds.Read(storeSel, memSel, []uint64{rowN}, buf); err != nil {
			return atStage(StageRead, err)
		}

		if Designated(w, FirstWorker) {
			// Nothing selected; the buffer must stay untouched.
			return checkBuffer(buf, func(uint64) (int32, bool) { return 0, true })
		}
		return checkBuffer(buf, func(uint64) (int32, bool) { return int32(w), true })
	}}}}
}

// scenarioOneRankNoneSelRead: like the zero-count case, but the designated
// worker participates with None selections over an empty memory space.
func scenarioOneRankNoneSelRead() Scenario {
	const name = "one_rank_none_sel_read_test"
	const dset = "one_rank_none_sel_read_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		if err := seedDataset(r, dset, dims, func(pos uint64) int32 {
			return int32(pos / rowN)
		}); err != nil {
			return err
		}

		ds, err := r.Store().OpenDataset(dset)
		if err != nil {
			return atStage(StageSetup, err)
		}
		defer func() { _ = ds.Close() }()

		if Designated(w, FirstWorker) {
			if err := ds.Read(None, None, []uint64{0}, nil); err != nil {
				return atStage(StageRead, err)
			}
			return nil
		}

		slab, err := RowSlab(w, n, dims)
		if err != nil {
			return atStage(StageFill, err)
		}
		buf := make([]byte, 4*rowN)
		if err := ds.Read(slab, All, []uint64{rowN}, buf); err != nil {
			return atStage(StageRead, err)
		}
		return checkBuffer(buf, func(uint64) (int32, bool) { return int32(w), true })
	}}}}
}

// scenarioOneRankAllSelRead: the designated worker reads the entire extent
// while every peer participates with None.
func scenarioOneRankAllSelRead() Scenario {
	const name = "one_rank_all_sel_read_test"
	const dset = "one_rank_all_sel_read_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w := r.Coord.WorkerID()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		if err := seedDataset(r, dset, dims, func(pos uint64) int32 {
			return int32(pos / rowN)
		}); err != nil {
			return err
		}

		ds, err := r.Store().OpenDataset(dset)
		if err != nil {
			return atStage(StageSetup, err)
		}
		defer func() { _ = ds.Close() }()

		if !Designated(w, FirstWorker) {
			if err := ds.Read(None, None, []uint64{0}, nil); err != nil {
				return atStage(StageRead, err)
			}
			return nil
		}

		total, err := utils.Product(dims)
		if err != nil {
			return atStage(StageFill, err)
		}
		buf := make([]byte, 4*total)
		if err := ds.Read(All, All, dims, buf); err != nil {
			return atStage(StageRead, err)
		}
		return checkBuffer(buf, func(pos uint64) (int32, bool) {
			return int32(pos / rowN), true
		})
	}}}}
}

// pairReadScenario builds the read scenario for one store/memory selection
// pairing, against independently seeded data. Hole pairings verify that the
// sentinel positions between selected memory offsets stay untouched.
func pairReadScenario(pc pairCase) Scenario {
	name := pc.name + "_read_test"
	dset := pc.name + "_read_dset"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w, n := r.Coord.WorkerID(), r.Coord.WorkerCount()
		dims := r.Dims(name, 2)
		rowN, err := rowElems(dims)
		if err != nil {
			return atStage(StageFill, err)
		}

		seed := func(pos uint64) int32 { return int32(pos / rowN) }
		if pc.solo {
			seed = func(pos uint64) int32 { return int32(pos) }
		}
		if err := seedDataset(r, dset, dims, seed); err != nil {
			return err
		}

		ds, err := r.Store().OpenDataset(dset)
		if err != nil {
			return atStage(StageSetup, err)
		}
		defer func() { _ = ds.Close() }()

		if pc.solo && !Designated(w, FirstWorker) {
			if err := ds.Read(None, None, []uint64{0}, nil); err != nil {
				return atStage(StageRead, err)
			}
			return nil
		}

		count := rowN
		if pc.solo {
			count, err = utils.Product(dims)
			if err != nil {
				return atStage(StageFill, err)
			}
		}
		storeSel, err := pc.storeSel(w, n, dims)
		if err != nil {
			return atStage(StageFill, err)
		}
		memSel, memDims := pc.memSel(count)

		elems, err := utils.Product(memDims)
		if err != nil {
			return atStage(StageFill, err)
		}
		buf := make([]byte, 4*elems)
		if err := ds.Read(storeSel, memSel, memDims, buf); err != nil {
			return atStage(StageRead, err)
		}

		switch {
		case pc.solo:
			// Even offsets carry the element's own position, odd ones the
			// zero sentinel.
			return checkBuffer(buf, func(pos uint64) (int32, bool) {
				if pos%2 == 0 {
					return int32(pos / 2), true
				}
				return 0, true
			})
		case pc.hole:
			return checkBuffer(buf, func(pos uint64) (int32, bool) {
				if pos%2 == 0 {
					return int32(w), true
				}
				return 0, true
			})
		default:
			return checkBuffer(buf, func(uint64) (int32, bool) { return int32(w), true })
		}
	}}}}
}
