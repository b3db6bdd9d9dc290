package report

import (
	"runtime"

	"github.com/programme-lv/membench/internal/bench"
	"github.com/programme-lv/membench/internal/workload"
)

// Reporter consumes measurement results. Implementations are local sinks
// (terminal, file); the interface keeps them swappable.
type Reporter interface {
	StartRun(info RunInfo)
	Report(res *bench.Result)
	FinishRun()
}

// RunInfo describes the configuration shared by all strategies in a run.
type RunInfo struct {
	GoVersion string        `json:"go_version"`
	MaxProcs  int           `json:"gomaxprocs"`
	NumCPU    int           `json:"num_cpu"`
	Kind      workload.Kind `json:"kind"`
	Tasks     int           `json:"tasks"`
	Intensity int           `json:"intensity"`
}

func NewRunInfo(kind workload.Kind, tasks, intensity int) RunInfo {
	return RunInfo{
		GoVersion: runtime.Version(),
		MaxProcs:  runtime.GOMAXPROCS(0),
		NumCPU:    runtime.NumCPU(),
		Kind:      kind,
		Tasks:     tasks,
		Intensity: intensity,
	}
}

// Multi fans results out to several reporters.
type Multi []Reporter

func (m Multi) StartRun(info RunInfo) {
	for _, r := range m {
		r.StartRun(info)
	}
}

func (m Multi) Report(res *bench.Result) {
	for _, r := range m {
		r.Report(res)
	}
}

func (m Multi) FinishRun() {
	for _, r := range m {
		r.FinishRun()
	}
}
