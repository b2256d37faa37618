package selcheck

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Coordinator is the worker-coordination collaborator: a fixed-size group of
// cooperating workers that must issue matching collective operations in the
// same relative order. A worker that diverges from the group's collective
// call sequence blocks indefinitely; that hazard is accepted and not
// detected at runtime.
type Coordinator interface {
	// WorkerID returns this worker's rank within the group, in [0, WorkerCount).
	WorkerID() int

	// WorkerCount returns the fixed group size.
	WorkerCount() int

	// Barrier blocks until every group member has reached it.
	Barrier()

	// AllReduceAnd combines the local flags of all members with logical AND
	// and returns the group-wide result to each of them. It is the failure
	// latch: a worker whose local operation failed reports false, and every
	// member observes the failure before issuing the next collective call.
	AllReduceAnd(local bool) bool

	// Split partitions the group by color into disjoint subgroups and
	// returns this worker's view of its subgroup. Members with equal color
	// land in one subgroup, ranked by their original id order. Split is
	// itself collective: every member must call it.
	Split(color int) (Coordinator, error)
}

// localGroup coordinates a group of in-process workers standing in for
// separate OS processes. Each collective primitive runs as a phase: the
// phase struct is shared by all participants of one invocation, so a member
// that races ahead into the next invocation cannot disturb peers still
// reading the previous result.
type localGroup struct {
	n    int
	mu   sync.Mutex
	cond *sync.Cond

	barrier *barrierPhase
	reduce  *reducePhase
	split   *splitPhase
}

type barrierPhase struct {
	arrived int
	done    bool
}

type reducePhase struct {
	acc     bool
	arrived int
	done    bool
	result  bool
}

type splitPhase struct {
	colors map[int]int
	done   bool
	result map[int]Coordinator
}

// localWorker is one member's view of a localGroup.
type localWorker struct {
	g  *localGroup
	id int
}

// NewLocalGroup creates an in-process worker group of size n and returns one
// Coordinator per member. Each member must be driven by its own goroutine;
// RunGroup does that.
func NewLocalGroup(n int) ([]Coordinator, error) {
	if n <= 0 {
		return nil, fmt.Errorf("worker group size must be > 0, got %d", n)
	}
	g := &localGroup{n: n}
	g.cond = sync.NewCond(&g.mu)

	workers := make([]Coordinator, n)
	for i := range workers {
		workers[i] = &localWorker{g: g, id: i}
	}
	return workers, nil
}

// RunGroup creates a local group of size n and runs fn once per member, each
// on its own goroutine. It returns the first non-nil error.
func RunGroup(n int, fn func(c Coordinator) error) error {
	workers, err := NewLocalGroup(n)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	for _, w := range workers {
		w := w
		eg.Go(func() error {
			return fn(w)
		})
	}
	return eg.Wait()
}

// WorkerID returns this member's rank.
func (w *localWorker) WorkerID() int { return w.id }

// WorkerCount returns the group size.
func (w *localWorker) WorkerCount() int { return w.g.n }

// Barrier blocks until all members arrive.
func (w *localWorker) Barrier() {
	g := w.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.barrier == nil {
		g.barrier = &barrierPhase{}
	}
	ph := g.barrier
	ph.arrived++
	if ph.arrived == g.n {
		ph.done = true
		g.barrier = nil
		g.cond.Broadcast()
		return
	}
	for !ph.done {
		g.cond.Wait()
	}
}

// AllReduceAnd combines local flags with logical AND across the group.
func (w *localWorker) AllReduceAnd(local bool) bool {
	g := w.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reduce == nil {
		g.reduce = &reducePhase{acc: true}
	}
	ph := g.reduce
	ph.acc = ph.acc && local
	ph.arrived++
	if ph.arrived == g.n {
		ph.result = ph.acc
		ph.done = true
		g.reduce = nil
		g.cond.Broadcast()
		return ph.result
	}
	for !ph.done {
		g.cond.Wait()
	}
	return ph.result
}

// Split partitions the group by color. The last arriver builds one subgroup
// per distinct color, assigning subgroup ranks in original id order.
func (w *localWorker) Split(color int) (Coordinator, error) {
	g := w.g
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.split == nil {
		g.split = &splitPhase{colors: make(map[int]int, g.n)}
	}
	ph := g.split
	ph.colors[w.id] = color

	if len(ph.colors) == g.n {
		ph.result = buildSubgroups(ph.colors)
		ph.done = true
		g.split = nil
		g.cond.Broadcast()
		return ph.result[w.id], nil
	}
	for !ph.done {
		g.cond.Wait()
	}
	return ph.result[w.id], nil
}

// buildSubgroups creates one localGroup per color and maps each original
// worker id to its subgroup view.
func buildSubgroups(colors map[int]int) map[int]Coordinator {
	members := make(map[int][]int)
	for id, color := range colors {
		members[color] = append(members[color], id)
	}

	result := make(map[int]Coordinator, len(colors))
	for _, ids := range members {
		sort.Ints(ids)
		sub := &localGroup{n: len(ids)}
		sub.cond = sync.NewCond(&sub.mu)
		for rank, id := range ids {
			result[id] = &localWorker{g: sub, id: rank}
		}
	}
	return result
}
