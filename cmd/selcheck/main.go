// Package main runs the selection-mapping verification scenarios across an
// in-process worker group and reports per-part verdicts.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/scigolib/selcheck"
)

type partVerdict struct {
	Scenario string `json:"scenario"`
	Part     string `json:"part"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		workers int
		seed    int64
		dir     string
		only    []string
		list    bool
		asJSON  bool
		verbose bool
	)
	pflag.IntVarP(&workers, "workers", "n", 4, "size of the worker group")
	pflag.Int64Var(&seed, "seed", 0, "seed for randomized dataset shapes (0 picks one)")
	pflag.StringVar(&dir, "dir", "", "directory for store files (default: a temporary one)")
	pflag.StringSliceVar(&only, "run", nil, "run only the named scenarios")
	pflag.BoolVar(&list, "list", false, "list scenario names and exit")
	pflag.BoolVar(&asJSON, "json", false, "emit the report as JSON")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pflag.Parse()

	if list {
		for _, sc := range selcheck.AllScenarios() {
			fmt.Println(sc.Name)
		}
		return 0
	}

	scenarios := selcheck.AllScenarios()
	if len(only) > 0 {
		var err error
		scenarios, err = selcheck.Lookup(only)
		if err != nil {
			fmt.Fprintln(os.Stderr, "selcheck:", err)
			return 2
		}
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "selcheck-*")
		if err != nil {
			fmt.Fprintln(os.Stderr, "selcheck:", err)
			return 2
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := &selcheck.TestContext{Seed: seed, Dir: dir, Logger: logger}
	report, err := selcheck.RunParallel(ctx, workers, scenarios)
	if err != nil {
		fmt.Fprintln(os.Stderr, "selcheck:", err)
		return 2
	}

	if asJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintln(os.Stderr, "selcheck:", err)
			return 2
		}
	} else {
		printText(report, seed, workers)
	}

	failures := report.Failures()
	if failures > 125 {
		failures = 125
	}
	return failures
}

func printJSON(report *selcheck.Report) error {
	verdicts := make([]partVerdict, 0, len(report.Results))
	for _, res := range report.Results {
		v := partVerdict{Scenario: res.Scenario, Part: res.Part, Passed: res.Passed}
		if res.Err != nil {
			v.Error = res.Err.Error()
		}
		verdicts = append(verdicts, v)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(verdicts)
}

func printText(report *selcheck.Report, seed int64, workers int) {
	for _, res := range report.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		label := res.Scenario
		if res.Part != "" && res.Part != res.Scenario {
			label = res.Scenario + "/" + res.Part
		}
		fmt.Printf("%s  %s\n", status, label)
		if res.Err != nil {
			fmt.Printf("      %v\n", res.Err)
		}
	}
	fmt.Printf("\n%d parts, %d failed (workers=%d seed=%d)\n",
		len(report.Results), report.Failures(), workers, seed)
}
