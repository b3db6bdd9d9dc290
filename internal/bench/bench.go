package bench

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/membench/internal/sampler"
	"github.com/programme-lv/membench/internal/strategy"
	"github.com/programme-lv/membench/internal/sysmem"
	"github.com/programme-lv/membench/internal/workload"
)

const defaultSettleDelay = 50 * time.Millisecond

// Result is one completed measurement. It is built once by Measure and not
// mutated afterwards. All memory values are in bytes.
type Result struct {
	ID        uuid.UUID     `json:"id"`
	Strategy  string        `json:"strategy"`
	Workloads int           `json:"workloads"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	RSSBefore int64         `json:"rss_before_bytes"`
	RSSPeak   int64         `json:"rss_peak_bytes"`
	RSSAfter  int64         `json:"rss_after_bytes"`

	// SamplerTimedOut marks a best-effort peak: the polling goroutine did not
	// confirm shutdown within the stop timeout.
	SamplerTimedOut bool `json:"sampler_timed_out"`
}

// PeakDelta is the headline number: how far above the starting footprint the
// run pushed resident memory.
func (r *Result) PeakDelta() int64 {
	return r.RSSPeak - r.RSSBefore
}

type Options struct {
	// IncludeChildren makes the sampler aggregate RSS over the whole process
	// tree; required for strategies that spawn child processes.
	IncludeChildren bool
	Interval        time.Duration
	StopTimeout     time.Duration
	SettleDelay     time.Duration
	Logger          *slog.Logger
}

// Measure wires a peak sampler around one strategy run and reports the
// before/peak/after readings. The sampler is started strictly before dispatch
// and stopped strictly after the strategy returns; on a strategy failure the
// sampler is still stopped before the error is propagated.
func Measure(ctx context.Context, strat strategy.Strategy, specs []workload.Spec, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	settle := opts.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}

	reader := sysmem.NewReader()

	// Reclaim what previous runs left behind so rss_before reflects a
	// settled baseline rather than garbage awaiting collection.
	runtime.GC()
	time.Sleep(settle)

	before, err := reader.CurrentRSS()
	if err != nil {
		return nil, fmt.Errorf("read baseline rss: %w", err)
	}

	smp := sampler.New(reader, sampler.Config{
		Interval:        opts.Interval,
		StopTimeout:     opts.StopTimeout,
		IncludeChildren: opts.IncludeChildren,
		Logger:          opts.Logger,
	})
	smp.Start()
	defer smp.Stop()

	start := time.Now()
	runErr := strat.Run(ctx, specs)
	elapsed := time.Since(start)

	peak, timedOut := smp.Stop()

	if runErr != nil {
		return nil, fmt.Errorf("strategy %s with %d workloads: %w",
			strat.Name(), len(specs), runErr)
	}

	after, err := reader.CurrentRSS()
	if err != nil {
		return nil, fmt.Errorf("read final rss: %w", err)
	}

	// The sampler polls on a schedule, so a spike right at either boundary
	// can slip between ticks. Clamp so peak >= max(before, after) holds.
	if before > peak {
		peak = before
	}
	if after > peak {
		peak = after
	}

	return &Result{
		ID:              uuid.New(),
		Strategy:        strat.Name(),
		Workloads:       len(specs),
		Elapsed:         elapsed,
		RSSBefore:       before,
		RSSPeak:         peak,
		RSSAfter:        after,
		SamplerTimedOut: timedOut,
	}, nil
}
