package workload

import (
	"fmt"
	"sync/atomic"
)

// Kind selects a workload unit implementation.
type Kind string

const (
	CPU        Kind = "cpu"        // iterative numeric computation; intensity = iterations
	Memory     Kind = "mem"        // allocate and touch; intensity = mebibytes
	Mandelbrot Kind = "mandelbrot" // fractal rows; intensity = rows
	HTTPLoad   Kind = "http"       // local server load; intensity = requests
)

// Spec describes one unit of work. Specs are immutable and safe to share
// across concurrently running units.
type Spec struct {
	Kind      Kind `json:"kind" toml:"kind"`
	Intensity int  `json:"intensity" toml:"intensity"`
}

func (s Spec) Validate() error {
	switch s.Kind {
	case CPU, Memory, Mandelbrot, HTTPLoad:
	default:
		return fmt.Errorf("unknown workload kind %q", s.Kind)
	}
	if s.Intensity <= 0 {
		return fmt.Errorf("workload intensity must be positive, got %d", s.Intensity)
	}
	return nil
}

// Sink accumulates a value derived from each unit's output so the compiler
// cannot discard the work.
var Sink atomic.Int64

// Run executes a single workload unit to completion on the calling goroutine.
func Run(spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	switch spec.Kind {
	case CPU:
		return runCPU(spec.Intensity)
	case Memory:
		return runMemory(spec.Intensity)
	case Mandelbrot:
		return runMandelbrot(spec.Intensity)
	case HTTPLoad:
		return runHTTPLoad(spec.Intensity)
	}
	return fmt.Errorf("unknown workload kind %q", spec.Kind)
}
