package strategy

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/programme-lv/membench/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specsWithIntensities(intensities ...int) []workload.Spec {
	specs := make([]workload.Spec, len(intensities))
	for i, n := range intensities {
		specs[i] = workload.Spec{Kind: workload.CPU, Intensity: n}
	}
	return specs
}

func TestNewRejectsUnknownName(t *testing.T) {
	_, err := New("fork-bomb", Config{})
	assert.Error(t, err)
}

func TestNewBuildsEveryRegisteredStrategy(t *testing.T) {
	for _, name := range Names() {
		strat, err := New(name, Config{})
		require.NoError(t, err)
		assert.Equal(t, name, strat.Name())
	}
}

func TestSequentialRunsUnitsInInputOrder(t *testing.T) {
	var got []int
	s := &Sequential{runUnit: func(spec workload.Spec) error {
		got = append(got, spec.Intensity)
		return nil
	}}

	err := s.Run(context.Background(), specsWithIntensities(3, 1, 4, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 4, 1, 5}, got)
}

func TestSequentialSurfacesUnitFailure(t *testing.T) {
	unitErr := errors.New("unit exploded")
	var ran int
	s := &Sequential{runUnit: func(spec workload.Spec) error {
		ran++
		if spec.Intensity == 2 {
			return unitErr
		}
		return nil
	}}

	err := s.Run(context.Background(), specsWithIntensities(1, 2, 3))
	require.ErrorIs(t, err, unitErr)
	assert.Contains(t, err.Error(), "unit 1")
	assert.Equal(t, 2, ran, "units after the failure do not run sequentially")
}

func TestGoroutinesStartsAllBeforeAwaiting(t *testing.T) {
	const units = 4
	var barrier sync.WaitGroup
	barrier.Add(units)

	g := &Goroutines{runUnit: func(spec workload.Spec) error {
		// Deadlocks unless every unit is started before any completes.
		barrier.Done()
		barrier.Wait()
		return nil
	}}

	done := make(chan error, 1)
	go func() {
		done <- g.Run(context.Background(), specsWithIntensities(1, 2, 3, 4))
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine strategy serialized its units")
	}
}

func TestGoroutinesDrainsAllUnitsOnFailure(t *testing.T) {
	unitErr := errors.New("unit exploded")
	var ran atomic.Int64

	g := &Goroutines{runUnit: func(spec workload.Spec) error {
		ran.Add(1)
		if spec.Intensity == 2 {
			return unitErr
		}
		return nil
	}}

	err := g.Run(context.Background(), specsWithIntensities(1, 2, 3, 4))
	require.ErrorIs(t, err, unitErr)
	assert.Equal(t, int64(4), ran.Load(), "siblings of a failed unit still run to completion")
}

func TestSubprocessJoinsAllChildren(t *testing.T) {
	s, err := NewSubprocess(Config{})
	require.NoError(t, err)
	s.newCommand = func(spec workload.Spec) *exec.Cmd {
		return exec.Command("true")
	}

	err = s.Run(context.Background(), specsWithIntensities(1, 2, 3))
	require.NoError(t, err)
	assert.Empty(t, s.LivePIDs(), "no child may outlive Run")
}

func TestSubprocessReportsFailingChildAfterJoiningAll(t *testing.T) {
	s, err := NewSubprocess(Config{})
	require.NoError(t, err)
	s.newCommand = func(spec workload.Spec) *exec.Cmd {
		if spec.Intensity == 2 {
			return exec.Command("false")
		}
		return exec.Command("true")
	}

	err = s.Run(context.Background(), specsWithIntensities(1, 2, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker for unit 1")
	assert.Empty(t, s.LivePIDs())
}

func TestSubprocessSpawnFailureReapsStartedChildren(t *testing.T) {
	s, err := NewSubprocess(Config{})
	require.NoError(t, err)
	s.newCommand = func(spec workload.Spec) *exec.Cmd {
		if spec.Intensity == 2 {
			return exec.Command("/nonexistent/membench-worker")
		}
		return exec.Command("sleep", "30")
	}

	start := time.Now()
	err = s.Run(context.Background(), specsWithIntensities(1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn worker for unit 1")
	assert.Empty(t, s.LivePIDs())
	assert.Less(t, time.Since(start), 10*time.Second,
		"already-started children are killed, not waited out")
}

func TestSubprocessWorkerCommandArguments(t *testing.T) {
	s, err := NewSubprocess(Config{ExecPath: "/usr/local/bin/membench"})
	require.NoError(t, err)

	cmd := s.workerCommand(workload.Spec{Kind: workload.Memory, Intensity: 50})
	want := []string{"/usr/local/bin/membench", "worker", "--kind", "mem", "--intensity", "50"}
	assert.Equal(t, want, cmd.Args, fmt.Sprintf("args were %v", cmd.Args))
}
