package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/membench/internal/bench"
)

const bytesPerMB = 1024 * 1024

// Terminal prints results as plain text. Field names and units (seconds, MB)
// are stable so the output stays greppable and parseable downstream.
type Terminal struct {
	out       io.Writer
	startedAt time.Time
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) StartRun(info RunInfo) {
	t.startedAt = time.Now()
	header := color.New(color.Bold, color.FgCyan)
	header.Fprintln(t.out, "== membench ==")
	fmt.Fprintf(t.out, "go_version: %s\n", info.GoVersion)
	fmt.Fprintf(t.out, "gomaxprocs: %d\n", info.MaxProcs)
	fmt.Fprintf(t.out, "num_cpu: %d\n", info.NumCPU)
	fmt.Fprintf(t.out, "workload: %s\n", info.Kind)
	fmt.Fprintf(t.out, "tasks: %d\n", info.Tasks)
	fmt.Fprintf(t.out, "intensity: %d\n", info.Intensity)
}

func (t *Terminal) Report(res *bench.Result) {
	name := color.New(color.Bold)
	fmt.Fprintln(t.out)
	name.Fprintf(t.out, "-- %s --\n", res.Strategy)
	fmt.Fprintf(t.out, "  time_sec: %.4f\n", res.Elapsed.Seconds())
	fmt.Fprintf(t.out, "  rss_before_mb: %.2f\n", mb(res.RSSBefore))
	fmt.Fprintf(t.out, "  rss_peak_mb: %.2f\n", mb(res.RSSPeak))
	fmt.Fprintf(t.out, "  rss_after_mb: %.2f\n", mb(res.RSSAfter))
	fmt.Fprintf(t.out, "  rss_delta_mb: %.2f\n", mb(res.PeakDelta()))
	if res.SamplerTimedOut {
		color.New(color.FgYellow).Fprintln(t.out, "  note: sampler shutdown timed out, peak is best-effort")
	}
}

func (t *Terminal) FinishRun() {
	dur := time.Since(t.startedAt).Round(time.Millisecond)
	fmt.Fprintf(t.out, "\n== finished in %s ==\n", dur)
}

func mb(bytes int64) float64 {
	return float64(bytes) / bytesPerMB
}
