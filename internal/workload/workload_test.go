package workload_test

import (
	"testing"

	"github.com/programme-lv/membench/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, workload.Spec{Kind: workload.CPU, Intensity: 1}.Validate())
	assert.NoError(t, workload.Spec{Kind: workload.Memory, Intensity: 50}.Validate())

	assert.Error(t, workload.Spec{Kind: "quantum", Intensity: 1}.Validate())
	assert.Error(t, workload.Spec{Kind: workload.CPU, Intensity: 0}.Validate())
	assert.Error(t, workload.Spec{Kind: workload.Memory, Intensity: -3}.Validate())
}

func TestRunRejectsInvalidSpec(t *testing.T) {
	err := workload.Run(workload.Spec{Kind: "quantum", Intensity: 1})
	assert.Error(t, err)
}

func TestCPUUnitCompletesAndProducesOutput(t *testing.T) {
	before := workload.Sink.Load()
	err := workload.Run(workload.Spec{Kind: workload.CPU, Intensity: 1000})
	require.NoError(t, err)
	assert.NotEqual(t, before, workload.Sink.Load(),
		"unit output must reach the sink so the work cannot be elided")
}

func TestMemoryUnitCompletes(t *testing.T) {
	err := workload.Run(workload.Spec{Kind: workload.Memory, Intensity: 1})
	require.NoError(t, err)
}

func TestMandelbrotUnitCompletes(t *testing.T) {
	before := workload.Sink.Load()
	err := workload.Run(workload.Spec{Kind: workload.Mandelbrot, Intensity: 4})
	require.NoError(t, err)
	assert.NotEqual(t, before, workload.Sink.Load(),
		"a band crossing the set interior must produce inside pixels")
}

func TestHTTPLoadUnitCompletes(t *testing.T) {
	err := workload.Run(workload.Spec{Kind: workload.HTTPLoad, Intensity: 20})
	require.NoError(t, err)
}
