package selcheck

import (
	"fmt"
	"os"
	"path/filepath"
)

// scenarioFileCreate: the group collectively creates a fresh store file,
// closes it, and the designated worker removes it.
func scenarioFileCreate() Scenario {
	const name = "file_create_test"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		path := filepath.Join(r.Ctx.Dir, "file_create_test.store")

		fs, err := CreateFileStore(path, r.Coord)
		if err != nil {
			return atStage(StageSetup, err)
		}
		if err := fs.Close(); err != nil {
			return atStage(StageTeardown, err)
		}

		return r.Independent("remove_store_file", func() error {
			if !Designated(r.Coord.WorkerID(), FirstWorker) {
				return nil
			}
			return os.Remove(path)
		})
	}}}}
}

// scenarioFileOpen: the group creates a store once, then reopens it first
// read-only (mutation must be rejected group-wide) and then read-write.
func scenarioFileOpen() Scenario {
	const name = "file_open_test"
	path := func(r *Run) string {
		return filepath.Join(r.Ctx.Dir, "file_open_test.store")
	}

	return Scenario{Name: name, Parts: []Part{
		{Name: "create", Run: func(r *Run) error {
			fs, err := CreateFileStore(path(r), r.Coord)
			if err != nil {
				return atStage(StageSetup, err)
			}
			if err := fs.Close(); err != nil {
				return atStage(StageTeardown, err)
			}
			return nil
		}},
		{Name: "open_read_only", Run: func(r *Run) error {
			fs, err := OpenFileStore(path(r), r.Coord, true)
			if err != nil {
				return atStage(StageSetup, err)
			}
			// Every worker must observe the rejection, the designated
			// appender and its peers alike.
			if _, err := fs.CreateDataset("rdonly_dset", []uint64{4}, Int32); err == nil {
				_ = fs.Close()
				return fmt.Errorf("dataset create on a read-only store succeeded")
			}
			if err := fs.Close(); err != nil {
				return atStage(StageTeardown, err)
			}
			return nil
		}},
		{Name: "open_read_write", Run: func(r *Run) error {
			fs, err := OpenFileStore(path(r), r.Coord, false)
			if err != nil {
				return atStage(StageSetup, err)
			}
			ds, err := fs.CreateDataset("rdwr_dset", []uint64{4}, Int32)
			if err != nil {
				_ = fs.Close()
				return atStage(StageWrite, err)
			}
			if err := ds.Close(); err != nil {
				_ = fs.Close()
				return atStage(StageWrite, err)
			}
			if err := fs.Close(); err != nil {
				return atStage(StageTeardown, err)
			}
			return r.Independent("remove_store_file", func() error {
				if !Designated(r.Coord.WorkerID(), FirstWorker) {
					return nil
				}
				return os.Remove(path(r))
			})
		}},
	}}
}

// scenarioSplitGroupFile: the group splits by worker parity; the even
// subgroup runs a full store lifecycle against its own file with subgroup
// ranks while the odd subgroup only synchronizes, then the whole group
// meets at a barrier.
func scenarioSplitGroupFile() Scenario {
	const name = "split_group_file_test"

	return Scenario{Name: name, Parts: []Part{{Name: name, Run: func(r *Run) error {
		w := r.Coord.WorkerID()
		color := w % 2

		sub, err := r.Coord.Split(color)
		if err != nil {
			return atStage(StageSetup, err)
		}

		if color == 0 {
			if err := splitGroupLifecycle(r, sub); err != nil {
				r.Coord.Barrier()
				return err
			}
		} else {
			sub.Barrier()
		}

		r.Coord.Barrier()
		return nil
	}}}}
}

// splitGroupLifecycle runs create, row write, close and remove against a
// subgroup-private store file, addressed by subgroup ranks.
func splitGroupLifecycle(r *Run, sub Coordinator) error {
	subW, subN := sub.WorkerID(), sub.WorkerCount()
	path := filepath.Join(r.Ctx.Dir, "split_group_even.store")

	fs, err := CreateFileStore(path, sub)
	if err != nil {
		return atStage(StageSetup, err)
	}

	dims := []uint64{uint64(subN), 8}
	ds, err := fs.CreateDataset("split_even_dset", dims, Int32)
	if err != nil {
		_ = fs.Close()
		return atStage(StageSetup, err)
	}

	slab, err := RowSlab(subW, subN, dims)
	if err != nil {
		_ = fs.Close()
		return atStage(StageFill, err)
	}
	buf := FillInt32(dims[1], func(uint64) int32 { return int32(subW) })
	if err := ds.Write(slab, All, []uint64{dims[1]}, buf); err != nil {
		_ = fs.Close()
		return atStage(StageWrite, err)
	}
	if err := ds.Close(); err != nil {
		_ = fs.Close()
		return atStage(StageWrite, err)
	}
	if err := fs.Close(); err != nil {
		return atStage(StageTeardown, err)
	}

	var rmErr error
	if Designated(subW, FirstWorker) {
		rmErr = os.Remove(path)
	}
	if ok := sub.AllReduceAnd(rmErr == nil); !ok {
		if rmErr != nil {
			return atStage(StageTeardown, rmErr)
		}
		return atStage(StageTeardown, fmt.Errorf("store file removal failed on a subgroup peer"))
	}
	return nil
}
