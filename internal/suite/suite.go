package suite

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/membench/internal/bench"
	"github.com/programme-lv/membench/internal/report"
	"github.com/programme-lv/membench/internal/strategy"
	"github.com/programme-lv/membench/internal/workload"
)

// Tolerance for comparing a measured peak delta against an expectation.
// Allocator batching and per-process runtime overhead make exact products
// unreachable, so a scenario passes within ±35% plus a flat 32 MiB allowance.
const (
	relTolerance     = 0.35
	flatToleranceMiB = 32
)

// Scenario is one runnable entry of a benchmark suite file.
type Scenario struct {
	Name       string   `toml:"name"`
	Workload   string   `toml:"workload"`
	Tasks      int      `toml:"tasks"`
	Intensity  int      `toml:"intensity"`
	Strategies []string `toml:"strategies"`
	Expect     Expect   `toml:"expect"`
}

// Expect holds optional per-strategy expected peak deltas in MB. Strategies
// without an entry are run but not checked.
type Expect struct {
	DeltaMB map[string]float64 `toml:"delta_mb"`
}

type root struct {
	Scenarios []Scenario `toml:"scenarios"`
}

// Parse reads a suite TOML file and validates every scenario.
func Parse(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}
	var r root
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse suite file %s: %w", path, err)
	}
	if len(r.Scenarios) == 0 {
		return nil, fmt.Errorf("suite file %s contains no scenarios", path)
	}
	for i := range r.Scenarios {
		if err := validate(&r.Scenarios[i], i); err != nil {
			return nil, err
		}
	}
	return r.Scenarios, nil
}

func validate(s *Scenario, idx int) error {
	if s.Name == "" {
		s.Name = fmt.Sprintf("scenario %d", idx+1)
	}
	spec := workload.Spec{Kind: workload.Kind(s.Workload), Intensity: s.Intensity}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	if s.Tasks <= 0 {
		return fmt.Errorf("%s: tasks must be positive, got %d", s.Name, s.Tasks)
	}
	if len(s.Strategies) == 0 {
		s.Strategies = strategy.Names()
	}
	for name := range s.Expect.DeltaMB {
		found := false
		for _, sn := range s.Strategies {
			if sn == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: expectation for strategy %q which is not run", s.Name, name)
		}
	}
	return nil
}

// WithinTolerance reports whether a measured peak delta (bytes) is close
// enough to an expected value (MB).
func WithinTolerance(measuredBytes int64, expectedMB float64) bool {
	measuredMB := float64(measuredBytes) / (1024 * 1024)
	diff := measuredMB - expectedMB
	if diff < 0 {
		diff = -diff
	}
	return diff <= expectedMB*relTolerance+flatToleranceMiB
}

// Runner executes suite scenarios and checks their expectations.
type Runner struct {
	Opts     bench.Options
	Reporter report.Reporter
	Logger   *slog.Logger
}

// Run executes every scenario in order. Expectation misses are collected and
// returned as one error; a failing measurement aborts the suite.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) error {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	var misses []string
	for _, sc := range scenarios {
		log.Info("running scenario", "name", sc.Name,
			"workload", sc.Workload, "tasks", sc.Tasks, "intensity", sc.Intensity)

		specs := make([]workload.Spec, sc.Tasks)
		for i := range specs {
			specs[i] = workload.Spec{Kind: workload.Kind(sc.Workload), Intensity: sc.Intensity}
		}

		r.Reporter.StartRun(report.NewRunInfo(workload.Kind(sc.Workload), sc.Tasks, sc.Intensity))
		for _, name := range sc.Strategies {
			strat, err := strategy.New(name, strategy.Config{Logger: log})
			if err != nil {
				return fmt.Errorf("%s: %w", sc.Name, err)
			}

			opts := r.Opts
			opts.IncludeChildren = name == strategy.NameProcesses
			res, err := bench.Measure(ctx, strat, specs, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", sc.Name, err)
			}
			r.Reporter.Report(res)

			expected, ok := sc.Expect.DeltaMB[name]
			if ok && !WithinTolerance(res.PeakDelta(), expected) {
				misses = append(misses, fmt.Sprintf(
					"%s/%s: peak delta %.2f MB outside tolerance of expected %.2f MB",
					sc.Name, name, float64(res.PeakDelta())/(1024*1024), expected))
			}
		}
		r.Reporter.FinishRun()
	}

	if len(misses) > 0 {
		msg := misses[0]
		for _, m := range misses[1:] {
			msg += "; " + m
		}
		return fmt.Errorf("%d expectation(s) missed: %s", len(misses), msg)
	}
	return nil
}
