package selcheck

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/scigolib/selcheck/internal/utils"
)

// Scenario is one named verification scenario: an ordered list of parts run
// collectively by every worker of the group. Parts of one scenario share a
// store handle and are isolated from each other: a failed part is recorded
// and the remaining parts still run.
type Scenario struct {
	Name  string
	Parts []Part
}

// Part is one independently-verdicted step of a scenario. Run is invoked on
// every worker with the shared per-worker Run state; its error is latched
// across the group, so a failure on any worker fails the part on all of them.
type Part struct {
	Name string
	Run  func(r *Run) error
}

// Run is the per-worker state a scenario part executes against: the context,
// this worker's coordinator view, and the currently open store handle.
type Run struct {
	Ctx   *TestContext
	Coord Coordinator

	factory StoreFactory
	store   Store
	log     *slog.Logger
}

// Store returns the currently open store handle.
func (r *Run) Store() Store { return r.store }

// Dims derives this scenario's dataset shape; every worker computes the same
// one. The leading extent equals the worker count.
func (r *Run) Dims(scenario string, rank int) []uint64 {
	return r.Ctx.ScenarioDims(scenario, rank, r.Coord.WorkerCount())
}

// Reopen closes and reopens the store, forcing written data through to
// persistent state so a subsequent read observes it. Collective.
func (r *Run) Reopen() error {
	if err := r.store.Close(); err != nil {
		return atStage(StageReopen, err)
	}
	store, err := r.factory(false)
	if err != nil {
		return atStage(StageReopen, err)
	}
	r.store = store
	return nil
}

// Independent brackets a region where workers act on their own: fn runs
// locally (usually rank-conditional, workers with nothing to do return nil)
// and its outcome is latched across the group before anyone proceeds, so a
// failure inside the region is observed by every worker. Collective.
func (r *Run) Independent(name string, fn func() error) error {
	err := fn()
	if ok := r.Coord.AllReduceAnd(err == nil); !ok {
		if err != nil {
			return fmt.Errorf("independent op %s: %w", name, err)
		}
		return fmt.Errorf("independent op %s: failed on a peer worker", name)
	}
	return nil
}

// VerifyFullRead reads the whole dataset with full-extent selections on both
// sides and checks every element against want. want returns the expected
// value and whether the position is asserted at all; unasserted positions are
// skipped. The first mismatch stops the check.
func (r *Run) VerifyFullRead(ds Dataset, want func(pos uint64) (int32, bool)) error {
	n, err := utils.Product(ds.Dims())
	if err != nil {
		return atStage(StageRead, err)
	}
	// The full-extent read overwrites every byte, so a pooled buffer with
	// stale contents is fine here.
	buf := utils.GetBuffer(int(n * ds.ElementType().Size()))
	defer utils.ReleaseBuffer(buf)
	if err := ds.Read(All, All, ds.Dims(), buf); err != nil {
		return atStage(StageRead, err)
	}

	for pos, got := range BytesInt32(buf) {
		w, check := want(uint64(pos))
		if check && got != w {
			return atStage(StageVerify, &MismatchError{Position: uint64(pos), Got: got, Want: w})
		}
	}
	return nil
}

// PartResult is the latched verdict of one scenario part on this worker.
// Err is the local failure when this worker failed, or a peer-failure marker
// when only another worker did.
type PartResult struct {
	Scenario string
	Part     string
	Passed   bool
	Err      error
}

// Report collects the part verdicts of one engine run. Verdicts are latched,
// so every worker's report agrees on Passed; Err carries per-worker detail.
type Report struct {
	Results []PartResult
}

// Failures returns the number of failed parts.
func (r *Report) Failures() int {
	n := 0
	for i := range r.Results {
		if !r.Results[i].Passed {
			n++
		}
	}
	return n
}

// Passed reports whether every part passed.
func (r *Report) Passed() bool { return r.Failures() == 0 }

// Engine drives scenarios across a worker group. Every worker of the group
// constructs an Engine with the same context and calls Run with its own
// coordinator view; the engine keeps the group in lockstep with a barrier
// between scenarios and a verdict reduction after every part.
type Engine struct {
	Ctx *TestContext

	// NewFactory builds the per-worker store factory. Nil selects the
	// reference file store at Ctx.StorePath().
	NewFactory func(coord Coordinator) StoreFactory
}

// Run executes the scenarios on this worker. Collective: every group member
// must call Run with the same scenario list.
func (e *Engine) Run(coord Coordinator, scenarios []Scenario) (*Report, error) {
	factory := e.storeFactory(coord)
	log := e.Ctx.logger().With(slog.Int("worker", coord.WorkerID()))

	report := &Report{}
	for _, sc := range scenarios {
		coord.Barrier()
		e.runScenario(coord, factory, log, sc, report)
	}
	coord.Barrier()
	return report, nil
}

func (e *Engine) storeFactory(coord Coordinator) StoreFactory {
	if e.NewFactory != nil {
		return e.NewFactory(coord)
	}
	path := e.Ctx.StorePath()
	return func(create bool) (Store, error) {
		if create {
			return CreateFileStore(path, coord)
		}
		return OpenFileStore(path, coord, false)
	}
}

func (e *Engine) runScenario(coord Coordinator, factory StoreFactory, log *slog.Logger, sc Scenario, report *Report) {
	log.Debug("scenario start", slog.String("scenario", sc.Name))

	store, err := factory(true)
	if err != nil {
		// Store setup failed group-wide; every part of the scenario is
		// reported failed without running.
		setupErr := &ScenarioError{Scenario: sc.Name, Err: atStage(StageSetup, err)}
		for _, part := range sc.Parts {
			report.Results = append(report.Results, PartResult{
				Scenario: sc.Name, Part: part.Name, Passed: false, Err: setupErr,
			})
		}
		return
	}

	run := &Run{Ctx: e.Ctx, Coord: coord, factory: factory, store: store, log: log}
	for _, part := range sc.Parts {
		partErr := part.Run(run)
		ok := coord.AllReduceAnd(partErr == nil)

		res := PartResult{Scenario: sc.Name, Part: part.Name, Passed: ok}
		if !ok {
			if partErr == nil {
				partErr = fmt.Errorf("failed on a peer worker")
			}
			res.Err = &ScenarioError{Scenario: sc.Name, Part: part.Name, Err: partErr}
			log.Warn("part failed",
				slog.String("scenario", sc.Name),
				slog.String("part", part.Name),
				slog.Any("error", res.Err))
		} else {
			log.Debug("part passed",
				slog.String("scenario", sc.Name),
				slog.String("part", part.Name))
		}
		report.Results = append(report.Results, res)
	}

	if err := run.store.Close(); err != nil {
		report.Results = append(report.Results, PartResult{
			Scenario: sc.Name, Part: "teardown", Passed: false,
			Err: &ScenarioError{Scenario: sc.Name, Part: "teardown", Err: atStage(StageTeardown, err)},
		})
	}
}

// RunParallel spins up an in-process worker group of the given size and runs
// the scenarios across it. It returns the first worker's report; verdicts
// are identical on every worker.
func RunParallel(ctx *TestContext, workers int, scenarios []Scenario) (*Report, error) {
	var mu sync.Mutex
	var report *Report

	err := RunGroup(workers, func(c Coordinator) error {
		eng := &Engine{Ctx: ctx}
		rep, err := eng.Run(c, scenarios)
		if err != nil {
			return err
		}
		if Designated(c.WorkerID(), FirstWorker) {
			mu.Lock()
			report = rep
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
