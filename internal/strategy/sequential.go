package strategy

import (
	"context"
	"fmt"
	"runtime"

	"github.com/programme-lv/membench/internal/workload"
)

// Sequential executes units one at a time on the calling goroutine, in input
// order. A GC pass between units lets completed allocations be reclaimed, so
// the peak footprint stays near a single unit's rather than the batch sum.
type Sequential struct {
	// runUnit is swapped out in tests.
	runUnit func(workload.Spec) error
}

func (s *Sequential) Name() string { return NameSequential }

func (s *Sequential) Run(ctx context.Context, specs []workload.Spec) error {
	run := s.runUnit
	if run == nil {
		run = workload.Run
	}
	for i, spec := range specs {
		if err := run(spec); err != nil {
			return fmt.Errorf("unit %d: %w", i, err)
		}
		runtime.GC()
	}
	return nil
}
