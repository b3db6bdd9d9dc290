package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/programme-lv/membench/internal/workload"
)

// Strategy dispatches a batch of workload units under one concurrency model
// and blocks until every unit has completed. Implementations must not leak
// goroutines or processes past Run, even when a unit fails.
type Strategy interface {
	Name() string
	Run(ctx context.Context, specs []workload.Spec) error
}

// Strategy names as accepted on the command line and reported in results.
const (
	NameSequential = "sequential"
	NameGoroutines = "goroutines"
	NameProcesses  = "processes"
)

func Names() []string {
	return []string{NameSequential, NameGoroutines, NameProcesses}
}

type Config struct {
	// ExecPath is the binary re-executed by the process strategy. Defaults
	// to the current executable.
	ExecPath string
	// WorkerCommand overrides how the process strategy builds a child for
	// one unit. Tests use it to substitute the worker re-exec.
	WorkerCommand func(spec workload.Spec) *exec.Cmd
	Logger        *slog.Logger
}

// New constructs the strategy registered under name.
func New(name string, cfg Config) (Strategy, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch name {
	case NameSequential:
		return &Sequential{}, nil
	case NameGoroutines:
		return &Goroutines{}, nil
	case NameProcesses:
		return NewSubprocess(cfg)
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}
