package selcheck

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalGroupRejectsEmptyGroup(t *testing.T) {
	_, err := NewLocalGroup(0)
	require.Error(t, err)
	_, err = NewLocalGroup(-1)
	require.Error(t, err)
}

func TestLocalGroupIdentity(t *testing.T) {
	workers, err := NewLocalGroup(3)
	require.NoError(t, err)
	require.Len(t, workers, 3)

	for i, w := range workers {
		assert.Equal(t, i, w.WorkerID())
		assert.Equal(t, 3, w.WorkerCount())
	}
}

func TestBarrierWaitsForAllMembers(t *testing.T) {
	const n = 8
	var before atomic.Int32

	err := RunGroup(n, func(c Coordinator) error {
		before.Add(1)
		c.Barrier()
		// Everyone arrived before anyone left.
		if got := before.Load(); got != n {
			return errors.New("left the barrier early")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAllReduceAnd(t *testing.T) {
	const n = 4

	err := RunGroup(n, func(c Coordinator) error {
		if !c.AllReduceAnd(true) {
			return errors.New("all-true round must reduce to true")
		}
		// One dissenter fails the whole group.
		if c.AllReduceAnd(c.WorkerID() != 2) {
			return errors.New("round with a false flag must reduce to false")
		}
		// Rounds are independent; the latched false does not leak forward.
		if !c.AllReduceAnd(true) {
			return errors.New("later round must not inherit the failure")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSplitByParity(t *testing.T) {
	const n = 5 // Odd size: subgroups of 3 and 2.

	var mu sync.Mutex
	subRanks := make(map[int]int)

	err := RunGroup(n, func(c Coordinator) error {
		sub, err := c.Split(c.WorkerID() % 2)
		if err != nil {
			return err
		}

		wantSize := 3 // Workers 0, 2, 4.
		if c.WorkerID()%2 == 1 {
			wantSize = 2 // Workers 1, 3.
		}
		if sub.WorkerCount() != wantSize {
			return errors.New("unexpected subgroup size")
		}

		// Subgroup collectives stay inside the subgroup.
		sub.Barrier()
		if !sub.AllReduceAnd(true) {
			return errors.New("subgroup reduce failed")
		}

		mu.Lock()
		subRanks[c.WorkerID()] = sub.WorkerID()
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	// Subgroup ranks follow original id order.
	want := map[int]int{0: 0, 2: 1, 4: 2, 1: 0, 3: 1}
	assert.Equal(t, want, subRanks)
}

func TestSplitSingleColor(t *testing.T) {
	err := RunGroup(3, func(c Coordinator) error {
		sub, err := c.Split(7)
		if err != nil {
			return err
		}
		if sub.WorkerCount() != 3 || sub.WorkerID() != c.WorkerID() {
			return errors.New("single-color split must mirror the group")
		}
		sub.Barrier()
		return nil
	})
	require.NoError(t, err)
}

func TestRunGroupPropagatesWorkerError(t *testing.T) {
	boom := errors.New("boom")
	err := RunGroup(4, func(c Coordinator) error {
		if c.WorkerID() == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}

func TestRepeatedCollectiveRounds(t *testing.T) {
	// A member racing ahead into the next round must not disturb peers
	// still reading the previous result.
	const n = 4
	const rounds = 100

	err := RunGroup(n, func(c Coordinator) error {
		for i := 0; i < rounds; i++ {
			// Worker i%n dissents; every round must reduce to false even
			// with no barrier separating consecutive rounds.
			if c.AllReduceAnd(c.WorkerID() != i%n) {
				return errors.New("dissenting round reduced to true")
			}
		}
		return nil
	})
	require.NoError(t, err)
}
