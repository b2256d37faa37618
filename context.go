package selcheck

import (
	"hash/fnv"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
)

// DefaultMaxDim bounds the randomized trailing extents of scenario datasets.
const DefaultMaxDim = 64

// TestContext carries the explicit per-run parameters every engine entry
// point needs: the RNG seed, the working directory, the trailing-dimension
// bound and the logger. Worker identity stays on the Coordinator. There is
// deliberately no process-wide state; two contexts can run side by side.
type TestContext struct {
	// Seed drives all randomized shape decisions. Every worker of a group
	// must use the same seed, so all members derive identical dataset
	// shapes without communicating.
	Seed int64

	// Dir is the directory store files are created in.
	Dir string

	// MaxDim bounds randomized trailing extents; 0 means DefaultMaxDim.
	MaxDim uint64

	// Logger receives engine progress and diagnostics. Nil discards.
	Logger *slog.Logger
}

func (c *TestContext) maxDim() uint64 {
	if c.MaxDim == 0 {
		return DefaultMaxDim
	}
	return c.MaxDim
}

func (c *TestContext) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// StorePath returns the path of the shared scenario store file.
func (c *TestContext) StorePath() string {
	return filepath.Join(c.Dir, "selcheck_parallel.store")
}

// ScenarioDims derives the dataset shape for a scenario deterministically
// from (seed, scenario name): the leading extent equals the worker count and
// each trailing extent is drawn uniformly from [1, MaxDim]. All workers
// compute the same shape independently.
func (c *TestContext) ScenarioDims(scenario string, rank int, workerCount int) []uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scenario))
	//nolint:gosec // G404: deterministic shape derivation, not cryptographic
	rng := rand.New(rand.NewSource(c.Seed ^ int64(h.Sum64())))

	dims := make([]uint64, rank)
	for d := range dims {
		if d == 0 {
			dims[d] = uint64(workerCount)
		} else {
			dims[d] = uint64(rng.Int63n(int64(c.maxDim()))) + 1
		}
	}
	return dims
}
