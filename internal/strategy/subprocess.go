package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/programme-lv/membench/internal/workload"
	"github.com/puzpuzpuz/xsync/v3"
)

// Subprocess spawns one OS process per unit, each with its own address space
// and runtime. Children are re-executions of this binary running the hidden
// worker command; the only signal crossing the process boundary is the exit
// code. Live children are tracked in a concurrent registry for join
// bookkeeping and LivePIDs snapshots; memory aggregation enumerates
// descendants independently through /proc.
type Subprocess struct {
	execPath   string
	log        *slog.Logger
	live       *xsync.MapOf[int, *exec.Cmd]
	newCommand func(spec workload.Spec) *exec.Cmd
}

func NewSubprocess(cfg Config) (*Subprocess, error) {
	execPath := cfg.ExecPath
	if execPath == "" {
		var err error
		execPath, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve own executable for worker re-exec: %w", err)
		}
	}
	s := &Subprocess{
		execPath: execPath,
		log:      cfg.Logger,
		live:     xsync.NewMapOf[int, *exec.Cmd](),
	}
	s.newCommand = s.workerCommand
	if cfg.WorkerCommand != nil {
		s.newCommand = cfg.WorkerCommand
	}
	return s, nil
}

func (s *Subprocess) Name() string { return NameProcesses }

func (s *Subprocess) workerCommand(spec workload.Spec) *exec.Cmd {
	cmd := exec.Command(s.execPath, "worker",
		"--kind", string(spec.Kind),
		"--intensity", strconv.Itoa(spec.Intensity))
	cmd.Stderr = os.Stderr
	return cmd
}

// Run starts one child per spec, then joins them all. Every started child is
// waited on before Run returns, also when a start or a sibling fails; no
// child may outlive the call.
func (s *Subprocess) Run(ctx context.Context, specs []workload.Spec) error {
	started := make([]*exec.Cmd, 0, len(specs))

	var startErr error
	for i, spec := range specs {
		cmd := s.newCommand(spec)
		if err := cmd.Start(); err != nil {
			startErr = fmt.Errorf("spawn worker for unit %d: %w", i, err)
			break
		}
		started = append(started, cmd)
		s.live.Store(cmd.Process.Pid, cmd)
	}

	if startErr != nil {
		// Partial start: reap whatever got off the ground before reporting.
		for _, cmd := range started {
			cmd.Process.Kill()
		}
	}

	var waitErr error
	for i, cmd := range started {
		err := cmd.Wait()
		s.live.Delete(cmd.Process.Pid)
		if err != nil && waitErr == nil {
			waitErr = fmt.Errorf("worker for unit %d: %w", i, err)
		}
	}

	if startErr != nil {
		return startErr
	}
	return waitErr
}

// LivePIDs snapshots the pids of children that have been started but not yet
// joined.
func (s *Subprocess) LivePIDs() []int {
	pids := make([]int, 0, s.live.Size())
	s.live.Range(func(pid int, _ *exec.Cmd) bool {
		pids = append(pids, pid)
		return true
	})
	return pids
}
