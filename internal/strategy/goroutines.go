package strategy

import (
	"context"
	"fmt"

	"github.com/programme-lv/membench/internal/workload"
	"golang.org/x/sync/errgroup"
)

// Goroutines spawns one goroutine per unit in a shared address space: all
// units are started before any is awaited, and Run returns only after every
// unit has finished. A failing unit does not cancel its siblings; they always
// run to completion, and the first error is reported once all have drained.
type Goroutines struct {
	runUnit func(workload.Spec) error
}

func (g *Goroutines) Name() string { return NameGoroutines }

func (g *Goroutines) Run(ctx context.Context, specs []workload.Spec) error {
	run := g.runUnit
	if run == nil {
		run = workload.Run
	}
	var grp errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		grp.Go(func() error {
			if err := run(spec); err != nil {
				return fmt.Errorf("unit %d: %w", i, err)
			}
			return nil
		})
	}
	return grp.Wait()
}
