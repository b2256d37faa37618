package selcheck

import (
	"fmt"

	"github.com/scigolib/selcheck/internal/utils"
)

// The scenario catalogue pairs every store-side selection kind with every
// memory-side selection kind over the one-row-per-worker partitioning, plus
// the degenerate participation cases (one worker selecting zero rows, nothing
// or everything) and an independent-transfer ordering case. Each pairing is
// exercised in both directions: a write scenario that round-trips through a
// close and reopen, and a read scenario against independently seeded data.

// DatasetScenarios returns the dataset transfer scenarios in catalogue order.
func DatasetScenarios() []Scenario {
	scenarios := []Scenario{
		scenarioWriteDataVerification(),
		scenarioOneRankZeroSelWrite(),
		scenarioOneRankNoneSelWrite(),
		scenarioOneRankAllSelWrite(),
	}
	for _, pc := range pairCases {
		scenarios = append(scenarios, pairWriteScenario(pc))
	}
	scenarios = append(scenarios,
		scenarioIndependentWrite(),
		scenarioOneRankZeroSelRead(),
		scenarioOneRankNoneSelRead(),
		scenarioOneRankAllSelRead(),
	)
	for _, pc := range pairCases {
		scenarios = append(scenarios, pairReadScenario(pc))
	}
	return scenarios
}

// FileScenarios returns the store lifecycle scenarios.
func FileScenarios() []Scenario {
	return []Scenario{
		scenarioFileCreate(),
		scenarioFileOpen(),
		scenarioSplitGroupFile(),
	}
}

// AllScenarios returns the full catalogue: file scenarios first, matching
// the order the reference suite runs them in.
func AllScenarios() []Scenario {
	return append(FileScenarios(), DatasetScenarios()...)
}

// Lookup returns the scenarios whose names appear in names, in catalogue
// order. Unknown names are an error.
func Lookup(names []string) ([]Scenario, error) {
	all := AllScenarios()
	byName := make(map[string]bool, len(names))
	for _, n := range names {
		byName[n] = true
	}

	var out []Scenario
	for _, sc := range all {
		if byName[sc.Name] {
			out = append(out, sc)
			delete(byName, sc.Name)
		}
	}
	for n := range byName {
		return nil, fmt.Errorf("unknown scenario %q", n)
	}
	return out, nil
}

// rowElems returns the number of elements in one leading-dimension row.
func rowElems(dims []uint64) (uint64, error) {
	return utils.Product(dims[1:])
}

// checkBuffer verifies a local wire-form int32 buffer element by element.
// want returns the expected value and whether the position is asserted.
func checkBuffer(buf []byte, want func(pos uint64) (int32, bool)) error {
	for pos, got := range BytesInt32(buf) {
		w, check := want(uint64(pos))
		if check && got != w {
			return atStage(StageVerify, &MismatchError{Position: uint64(pos), Got: got, Want: w})
		}
	}
	return nil
}

// zeroSlab is the zero-count one-dimensional hyperslab a worker pairs with a
// zero-count store selection on the memory side.
func zeroSlab() *HyperslabSelection {
	return &HyperslabSelection{
		Start:  []uint64{0},
		Stride: []uint64{1},
		Count:  []uint64{0},
		Block:  []uint64{0},
	}
}

// pairCase is one store/memory selection pairing, shared by a write scenario
// and a read scenario.
//
// In the per-worker form, every worker transfers its own row: storeSel picks
// the row and memSel addresses a flat memory space of the row's elements.
// In the solo form, the designated worker transfers the entire extent while
// its peers participate with empty selections on both sides.
//
// hole marks pairings whose memory side addresses only the even offsets of a
// double-size buffer; the untouched odd offsets prove the mapping stays
// inside the selection.
type pairCase struct {
	name     string
	solo     bool
	hole     bool
	storeSel func(worker, numWorkers int, dims []uint64) (Selection, error)
	memSel   func(count uint64) (Selection, []uint64)
}

var pairCases = []pairCase{
	{
		name: "hyper_file_all_mem",
		storeSel: func(w, n int, dims []uint64) (Selection, error) {
			return RowSlab(w, n, dims)
		},
		memSel: func(count uint64) (Selection, []uint64) {
			return All, []uint64{count}
		},
	},
	{
		name: "point_file_all_mem",
		storeSel: func(w, n int, dims []uint64) (Selection, error) {
			return RowPoints(w, n, dims)
		},
		memSel: func(count uint64) (Selection, []uint64) {
			return All, []uint64{count}
		},
	},
	{
		name: "hyper_file_point_mem",
		hole: true,
		storeSel: func(w, n int, dims []uint64) (Selection, error) {
			return RowSlab(w, n, dims)
		},
		memSel: func(count uint64) (Selection, []uint64) {
			return EvenPoints(count), []uint64{2 * count}
		},
	},
	{
		name: "point_file_hyper_mem",
		hole: true,
		storeSel: func(w, n int, dims []uint64) (Selection, error) {
			return RowPoints(w, n, dims)
		},
		memSel: func(count uint64) (Selection, []uint64) {
			return EvenStrideSlab(count), []uint64{2 * count}
		},
	},
	{
		name: "all_file_hyper_mem",
		solo: true,
		hole: true,
		storeSel: func(w, n int, dims []uint64) (Selection, error) {
			return All, nil
		},
		memSel: func(count uint64) (Selection, []uint64) {
			return EvenStrideSlab(count), []uint64{2 * count}
		},
	},
	{
		name: "all_file_point_mem",
		solo: true,
		hole: true,
		storeSel: func(w, n int, dims []uint64) (Selection, error) {
			return All, nil
		},
		memSel: func(count uint64) (Selection, []uint64) {
			return EvenPoints(count), []uint64{2 * count}
		},
	},
}
